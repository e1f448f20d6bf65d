// Command mindscape is the composition root for the local single-user
// adapter: it wires every port (engine, store, event log, sandbox,
// tool dispatch, capability router, playbook loader) to its in-process
// or filesystem implementation and exposes the `serve` and
// `run-playbook` subcommands described in §6, grounded on the teacher's
// `example/cmd/assistant` main (log.Context setup, signal-driven
// graceful shutdown) with cobra in place of its hand-rolled flag loop.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/mindscape-ai/core/internal/capability"
	"github.com/mindscape-ai/core/internal/capability/providers/anthropic"
	"github.com/mindscape-ai/core/internal/capability/providers/openai"
	"github.com/mindscape-ai/core/internal/decision"
	"github.com/mindscape-ai/core/internal/embedding/hash"
	embeddingopenai "github.com/mindscape-ai/core/internal/embedding/openai"
	"github.com/mindscape-ai/core/internal/engine/inmem"
	eventloginmem "github.com/mindscape-ai/core/internal/eventlog/inmem"
	"github.com/mindscape-ai/core/internal/execctx"
	"github.com/mindscape-ai/core/internal/frontdoor"
	"github.com/mindscape-ai/core/internal/intent"
	intentinmem "github.com/mindscape-ai/core/internal/intent/inmem"
	"github.com/mindscape-ai/core/internal/intent/vectorstore/chromem"
	"github.com/mindscape-ai/core/internal/playbook"
	"github.com/mindscape-ai/core/internal/playbook/registry"
	"github.com/mindscape-ai/core/internal/ports"
	"github.com/mindscape-ai/core/internal/runtime"
	"github.com/mindscape-ai/core/internal/sandbox"
	storeinmem "github.com/mindscape-ai/core/internal/store/inmem"
	"github.com/mindscape-ai/core/internal/store/sqlite"
	"github.com/mindscape-ai/core/internal/telemetry"
	"github.com/mindscape-ai/core/internal/tooldispatch"
	toollocal "github.com/mindscape-ai/core/internal/tooldispatch/local"
	toolremote "github.com/mindscape-ai/core/internal/tooldispatch/remote"
)

func main() {
	// Load a local .env if present so MINDSCAPE_*/ANTHROPIC_API_KEY/etc.
	// can be set once for dev without exporting them in the shell; a
	// missing file is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "mindscape: loading .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mindscape",
		Short: "Playbook runtime composition root",
	}
	root.AddCommand(newServeCmd(), newRunPlaybookCmd(), newMessageCmd(), newRebuildClustersCmd())
	return root
}

// composition bundles everything buildRuntime wires together so callers
// (serve's HTTP handlers, run-playbook's polling loop) share one
// instance per process.
type composition struct {
	runtime   *runtime.Runtime
	door      *frontdoor.Door
	clusterer *intent.Clusterer
	cards     intent.CardStore
	closers   []func() error
}

func (c *composition) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

// buildRuntime assembles the local adapter set: an in-memory engine, a
// sqlite- or in-memory-backed session store depending on DATABASE_PATH,
// a bounded in-memory event log, a sandboxed filesystem artifact store,
// a tool dispatcher with local and remote-HTTP adapters registered, a
// filesystem-backed playbook catalog, and a capability router populated
// from whichever provider API keys are present in the environment.
func buildRuntime(ctx context.Context, playbooksDir, configPath string) (*composition, error) {
	comp := &composition{}
	logger := telemetry.NewClueLogger()

	fileCfg, err := loadFileConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("mindscape: load config: %w", err)
	}

	eng := inmem.New()

	var sessionStore runtime.Store
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		sq, err := sqlite.Open(ctx, dbPath)
		if err != nil {
			return nil, fmt.Errorf("mindscape: open session store: %w", err)
		}
		sessionStore = sq
		comp.closers = append(comp.closers, sq.Close)
	} else {
		sessionStore = storeinmem.New()
	}

	events := eventloginmem.New(4096)

	sandboxDir := filepath.Join(playbooksDir, "..", "artifacts")
	artifacts, err := sandbox.New(sandboxDir)
	if err != nil {
		return nil, fmt.Errorf("mindscape: open sandbox: %w", err)
	}

	connStore := newFileConnectionStore(filepath.Join(playbooksDir, "..", "connections.json"))
	dispatcher := tooldispatch.New(connStore, events, logger)
	dispatcher.RegisterAdapter(tooldispatch.ConnectionLocal, toollocal.New())
	dispatcher.RegisterAdapter(tooldispatch.ConnectionRemote, toolremote.New())

	catalog := registry.NewCatalog(logger)
	catalog.Register(registry.NewFSSource("local", playbooksDir), 30*time.Second)

	loader := playbook.NewLoader(catalog, fixedCapabilityChecker{}, connStore)

	router := capability.NewRouter(buildProfiles(fileCfg), nil)

	cfg := runtime.Config{}
	if cap := os.Getenv("MINDSCAPE_ABSOLUTE_COST_CAP"); cap != "" {
		fmt.Sscanf(cap, "%f", &cfg.AbsoluteCap)
	}

	rt := runtime.New(eng, loader, router, dispatcher, artifacts, events, sessionStore, cfg, logger, "mindscape.local")
	if err := rt.Start(ctx); err != nil {
		return nil, fmt.Errorf("mindscape: start runtime: %w", err)
	}
	comp.runtime = rt

	signals := intentinmem.NewSignalStore(512)
	cards := intentinmem.NewCardStore()
	clusters := intentinmem.NewClusterStore()
	comp.cards = cards

	embeddings := buildEmbedding()
	vectors := chromem.New()
	ectx := execctx.New("system", "", "frontdoor", execctx.ModeLocal)

	fastLLM, fastErr := router.Resolve(ctx, capability.ProfileFast, ectx, "frontdoor")
	standardLLM, stdErr := router.Resolve(ctx, capability.ProfileStandard, ectx, "frontdoor")
	if fastErr != nil || stdErr != nil {
		logger.Warn(ctx, "mindscape: no LLM provider configured, message front door disabled")
		return comp, nil
	}

	extractor, err := intent.NewExtractor(fastLLM, events, logger)
	if err != nil {
		return nil, fmt.Errorf("mindscape: build intent extractor: %w", err)
	}
	steward := intent.NewSteward(standardLLM, embeddings, cards, signals, events, logger)
	decisionPipeline := decision.New(standardLLM, catalogCandidates{catalog: catalog})
	comp.door = frontdoor.New(extractor, steward, decisionPipeline, signals, cards)
	comp.clusterer = intent.NewClusterer(embeddings, vectors, fastLLM, clusters, 0)

	return comp, nil
}

// buildEmbedding selects the Embedding port's backing adapter: an
// OpenAI-hosted one when OPENAI_API_KEY is set, else the dependency-free
// feature-hashing adapter, so the Intent Steward's dedup pre-screen and
// the Intent Clusterer's cohesion check always have a usable embedder.
func buildEmbedding() ports.Embedding {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if emb, err := embeddingopenai.NewFromAPIKey(key, "text-embedding-3-small"); err == nil {
			return emb
		}
	}
	return hash.New(hash.DefaultDimensions)
}

// catalogCandidates adapts the Playbook Catalog into the Execution
// Decision Pipeline's CandidateSource. Usage-history enrichment
// (PinnedToWorkspace, RecentlyUsed, HistoricalSuccess) is not tracked by
// this local adapter; every candidate reports the zero value for those
// fields until a usage-history store exists (see DESIGN.md).
type catalogCandidates struct {
	catalog playbook.Catalog
}

func (c catalogCandidates) Candidates(ctx context.Context, _ string, domainTags []string) ([]decision.Candidate, error) {
	templates, err := c.catalog.ByTags(ctx, domainTags)
	if err != nil {
		return nil, err
	}
	out := make([]decision.Candidate, 0, len(templates))
	for _, t := range templates {
		out = append(out, decision.Candidate{
			Code:           t.Code,
			Tags:           t.Tags,
			RequiredTools:  t.RequiredTools,
			ToolsAvailable: true,
		})
	}
	return out, nil
}

// buildProfiles wires the Capability Router's fallback chains from
// whichever provider API keys are present in the environment; a profile
// with no configured provider simply has an empty chain and resolves to
// ErrNoProviderAvailable at call time rather than failing at startup.
// Per-profile cost ceilings and strict-tool-call requirements come from
// fileCfg when a config file was loaded, else every profile shares the
// same unrestricted default.
func buildProfiles(fileCfg *fileConfig) map[capability.Profile]capability.ProfileConfig {
	var chain []capability.FallbackEntry

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if client, err := anthropic.NewFromAPIKey(key, anthropic.Options{
			FastModel:     "claude-3-5-haiku-latest",
			StandardModel: "claude-sonnet-4-5",
			PreciseModel:  "claude-opus-4-1",
		}); err == nil {
			chain = append(chain, capability.FallbackEntry{ProviderName: "anthropic", Client: client, CostPer1kTokens: 3.0, StrictToolCalls: true})
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if client, err := openai.NewFromAPIKey(key, openai.Options{
			FastModel:     "gpt-4o-mini",
			StandardModel: "gpt-4o",
			PreciseModel:  "gpt-4o",
		}); err == nil {
			chain = append(chain, capability.FallbackEntry{ProviderName: "openai", Client: client, CostPer1kTokens: 2.5, StrictToolCalls: true})
		}
	}

	profiles := []capability.Profile{
		capability.ProfileFast, capability.ProfileStandard, capability.ProfilePrecise,
		capability.ProfileToolStrict, capability.ProfileSafeWrite,
	}
	out := make(map[capability.Profile]capability.ProfileConfig, len(profiles))
	for _, p := range profiles {
		cfg := capability.ProfileConfig{FallbackChain: chain}
		if fileCfg != nil {
			if override, ok := fileCfg.Profiles[string(p)]; ok {
				cfg.CostCeilingPer1k = override.CostCeilingPer1k
				cfg.RequireStrict = override.RequireStrict
			}
		}
		out[p] = cfg
	}
	return out
}

// fileConfig is the optional TOML configuration file accepted via
// --config, covering settings too structured for a single env var: per
// profile cost ceilings and strict-tool-call requirements (§4.4).
//
//	[profiles.SAFE_WRITE]
//	cost_ceiling_per_1k = 5.0
//	require_strict = true
type fileConfig struct {
	Profiles map[string]profileOverride `toml:"profiles"`
}

type profileOverride struct {
	CostCeilingPer1k float64 `toml:"cost_ceiling_per_1k"`
	RequireStrict    bool    `toml:"require_strict"`
}

// loadFileConfig reads a TOML config file; an empty path or a missing
// file yields a nil config rather than an error, since --config is
// optional.
func loadFileConfig(path string) (*fileConfig, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}

// fixedCapabilityChecker treats the five built-in capability profiles as
// always known, matching §4.4's fixed profile set (FAST/STANDARD/
// PRECISE/TOOL_STRICT/SAFE_WRITE); deployments do not add custom
// profiles.
type fixedCapabilityChecker struct{}

func (fixedCapabilityChecker) KnownCapability(name string) bool {
	switch capability.Profile(name) {
	case capability.ProfileFast, capability.ProfileStandard, capability.ProfilePrecise,
		capability.ProfileToolStrict, capability.ProfileSafeWrite:
		return true
	default:
		return false
	}
}

// fileConnectionStore loads tool connections from a single JSON file,
// the local adapter's equivalent of a ToolConnection admin surface:
// {"connections": [{"id": "...", "tool_type": "...", ...}]}. A missing
// file means no connections are configured yet.
type fileConnectionStore struct {
	byCode map[string]*tooldispatch.Connection
	byType map[string][]string
}

func newFileConnectionStore(path string) *fileConnectionStore {
	store := &fileConnectionStore{byCode: map[string]*tooldispatch.Connection{}, byType: map[string][]string{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return store
	}
	var doc struct {
		Connections []*tooldispatch.Connection `json:"connections"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return store
	}
	for _, conn := range doc.Connections {
		store.byCode[conn.ID] = conn
		store.byType[conn.ToolType] = append(store.byType[conn.ToolType], conn.ID)
	}
	return store
}

func (f *fileConnectionStore) Get(_ context.Context, _, code string) (*tooldispatch.Connection, error) {
	conn, ok := f.byCode[code]
	if !ok {
		return nil, fmt.Errorf("mindscape: unknown tool connection %q", code)
	}
	return conn, nil
}

// ToolExists implements playbook.ToolChecker.
func (f *fileConnectionStore) ToolExists(_ context.Context, _, toolType string) bool {
	return len(f.byType[toolType]) > 0
}

func newServeCmd() *cobra.Command {
	var host, port, playbooksDir, configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the core with its ports wired to the local adapter set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format := log.FormatJSON
			if log.IsTerminal() {
				format = log.FormatTerminal
			}
			ctx := log.Context(context.Background(), log.WithFormat(format))

			comp, err := buildRuntime(ctx, playbooksDir, configPath)
			if err != nil {
				return err
			}
			defer comp.Close()

			addr := fmt.Sprintf("%s:%s", host, port)
			srv := &http.Server{Addr: addr, Handler: newAPIMux(comp)}

			errc := make(chan error, 1)
			go func() {
				log.Print(ctx, log.KV{K: "addr", V: addr})
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errc <- err
				}
			}()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errc:
				return err
			case sig := <-sigc:
				log.Printf(ctx, "shutting down: %v", sig)
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&host, "host", envOr("HOST", "localhost"), "bind host")
	cmd.Flags().StringVar(&port, "port", envOr("PORT", "8090"), "bind port")
	cmd.Flags().StringVar(&playbooksDir, "playbooks-dir", "./playbooks", "directory of playbook files")
	cmd.Flags().StringVar(&configPath, "config", envOr("MINDSCAPE_CONFIG", ""), "optional TOML config file (profile overrides)")
	return cmd
}

func newRunPlaybookCmd() *cobra.Command {
	var workspace, code, inputsJSON, playbooksDir, configPath string
	cmd := &cobra.Command{
		Use:   "run-playbook",
		Short: "Execute a single playbook synchronously",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))

			var inputs map[string]any
			if inputsJSON != "" {
				if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
					return fmt.Errorf("mindscape: decode --inputs: %w", err)
				}
			}

			comp, err := buildRuntime(ctx, playbooksDir, configPath)
			if err != nil {
				return err
			}
			defer comp.Close()

			executionID, err := comp.runtime.Run(ctx, ports.RunRequest{
				WorkspaceID: workspace,
				Code:        code,
				Inputs:      inputs,
			})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(2)
			}

			for {
				status, err := comp.runtime.Status(ctx, executionID)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					os.Exit(2)
				}
				switch status.State {
				case "completed":
					fmt.Println("completed")
					os.Exit(0)
				case "failed":
					if status.FailureKind == "cost_cap_exceeded" {
						fmt.Fprintln(os.Stderr, "cost cap exceeded")
						os.Exit(4)
					}
					fmt.Fprintln(os.Stderr, "failed:", status.FailureKind)
					os.Exit(2)
				case "cancelled":
					fmt.Println("cancelled")
					os.Exit(3)
				}
				time.Sleep(200 * time.Millisecond)
			}
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&code, "code", "", "playbook code")
	cmd.Flags().StringVar(&inputsJSON, "inputs", "", "JSON-encoded playbook inputs")
	cmd.Flags().StringVar(&playbooksDir, "playbooks-dir", "./playbooks", "directory of playbook files")
	cmd.Flags().StringVar(&configPath, "config", envOr("MINDSCAPE_CONFIG", ""), "optional TOML config file (profile overrides)")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

// newMessageCmd runs a single user message through the message-driven
// front door: Intent Extractor → Intent Steward → Execution Decision
// Pipeline, the primary control flow §2 describes, reachable here without
// standing up the HTTP server.
func newMessageCmd() *cobra.Command {
	var workspace, text, playbooksDir, configPath string
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Run one message through intent extraction, governance, and the execution decision pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))

			comp, err := buildRuntime(ctx, playbooksDir, configPath)
			if err != nil {
				return err
			}
			defer comp.Close()

			if comp.door == nil {
				return fmt.Errorf("mindscape: no LLM provider configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
			}

			result, err := comp.door.HandleMessage(ctx, workspace, text)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	cmd.Flags().StringVar(&playbooksDir, "playbooks-dir", "./playbooks", "directory of playbook files")
	cmd.Flags().StringVar(&configPath, "config", envOr("MINDSCAPE_CONFIG", ""), "optional TOML config file (profile overrides)")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

// newRebuildClustersCmd rebuilds a workspace's IntentClusters from its
// active cards (§4.9). Cluster identity is not promised across rebuilds,
// so this is safe to run on a schedule or on demand.
func newRebuildClustersCmd() *cobra.Command {
	var workspace, playbooksDir, configPath string
	cmd := &cobra.Command{
		Use:   "rebuild-clusters",
		Short: "Rebuild the intent clusters for a workspace from its active cards",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := log.Context(context.Background(), log.WithFormat(log.FormatJSON))

			comp, err := buildRuntime(ctx, playbooksDir, configPath)
			if err != nil {
				return err
			}
			defer comp.Close()

			if comp.clusterer == nil {
				return fmt.Errorf("mindscape: no LLM provider configured; set ANTHROPIC_API_KEY or OPENAI_API_KEY")
			}

			cards, err := comp.cards.List(ctx, workspace, intent.CardStatusActive)
			if err != nil {
				return err
			}
			clusters, err := comp.clusterer.Cluster(ctx, workspace, cards)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(clusters)
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.Flags().StringVar(&playbooksDir, "playbooks-dir", "./playbooks", "directory of playbook files")
	cmd.Flags().StringVar(&configPath, "config", envOr("MINDSCAPE_CONFIG", ""), "optional TOML config file (profile overrides)")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

// newAPIMux exposes ports.PlaybookExecutor and the message-driven front
// door over a small REST surface, the teacher's stdlib-only HTTP
// convention (no external router) applied here to serve's control
// surface rather than an outbound client.
func newAPIMux(comp *composition) http.Handler {
	executor := comp.runtime
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/playbooks/run", func(w http.ResponseWriter, r *http.Request) {
		var req ports.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		executionID, err := executor.Run(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, map[string]string{"execution_id": executionID})
	})

	mux.HandleFunc("GET /v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		status, err := executor.Status(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("POST /v1/executions/{id}/pause", signalHandler(executor.Pause))
	mux.HandleFunc("POST /v1/executions/{id}/resume", signalHandler(executor.Resume))
	mux.HandleFunc("POST /v1/executions/{id}/cancel", signalHandler(executor.Cancel))

	mux.HandleFunc("POST /v1/workspaces/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if comp.door == nil {
			http.Error(w, "message front door not configured: set an LLM provider API key", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, err := comp.door.HandleMessage(r.Context(), r.PathValue("id"), req.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeJSON(w, result)
	})

	return mux
}

func signalHandler(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), r.PathValue("id")); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
