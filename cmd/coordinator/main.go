// Command coordinator runs the HSM coordination service: the process
// workers register with, and the admin surface operators use to list the
// fleet, toggle worker availability, and ask which worker owns a document
// (spec.md §4.4, §4.9).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gristlabs/grist-core-sub007/internal/cluster"
	"github.com/gristlabs/grist-core-sub007/internal/config"
	"github.com/gristlabs/grist-core-sub007/internal/coordinator"
	"github.com/gristlabs/grist-core-sub007/internal/workermap"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "HSM coordinator: fleet registration and the worker admin surface",
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workersCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start accepting worker registrations and serving the admin HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Operator subcommands that query a running coordinator over HTTP",
}

func init() {
	workersCmd.AddCommand(workersListCmd)
	workersCmd.AddCommand(workersAvailabilityCmd)
}

func coordinatorAddr() string {
	if addr := os.Getenv("COORDINATOR_ADDR"); addr != "" {
		return addr
	}
	return "http://127.0.0.1:8080"
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every worker the coordinator knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out []cluster.WorkerInfo
		if err := cluster.GetJSON(context.Background(), coordinatorAddr()+"/workers", &out); err != nil {
			return err
		}
		for _, w := range out {
			fmt.Printf("%s\tavailable=%t\tstatus=%s\t%s\n", w.ID, w.Available, w.Status, w.PublicURL)
		}
		return nil
	},
}

var workersAvailabilityCmd = &cobra.Command{
	Use:   "set-availability <worker-id> <true|false>",
	Short: "Toggle whether a worker accepts new document assignments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		available := args[1] == "true"
		url := fmt.Sprintf("%s/workers/%s/availability", coordinatorAddr(), args[0])
		return cluster.PostJSON(context.Background(), url, map[string]bool{"available": available}, nil)
	},
}

func runServe() error {
	cfg, err := config.LoadCoordinatorConfig()
	if err != nil {
		return err
	}
	config.InitLogging(cfg.Log)
	logger := config.WithComponent("coordinator")

	var workers workermap.Map
	if cfg.RedisAddr != "" {
		pool := &redis.Pool{
			MaxIdle: 8,
			Dial:    func() (redis.Conn, error) { return redis.Dial("tcp", cfg.RedisAddr) },
		}
		workers = workermap.NewRedisMap(pool)
	} else {
		workers = workermap.NewInMemoryMap()
	}

	registry := coordinator.NewRegistry(workers, prometheus.DefaultRegisterer)
	health := coordinator.NewHealthMonitor(registry, 10*time.Second)

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	go health.Start(healthCtx)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/register", newRegisterHandler(registry))
	mux.HandleFunc("/workers", newWorkersHandler(registry))
	mux.HandleFunc("/workers/", newWorkerAvailabilityHandler(registry))
	mux.HandleFunc("/docs/", newAssignmentHandler(registry))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("listen", cfg.Listen).Msg("coordinator listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cancelHealth()
	health.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	logger.Info().Msg("coordinator stopped")
	return nil
}

func newRegisterHandler(registry *coordinator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req cluster.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := registry.Register(r.Context(), req.Worker); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func newWorkersHandler(registry *coordinator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(registry.List())
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// newWorkerAvailabilityHandler serves POST /workers/{id}/availability and
// DELETE /workers/{id}.
func newWorkerAvailabilityHandler(registry *coordinator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/workers/")
		if path == "" {
			http.Error(w, "missing worker id", http.StatusBadRequest)
			return
		}

		if id, ok := strings.CutSuffix(path, "/availability"); ok {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var body struct {
				Available bool `json:"available"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := registry.SetAvailability(r.Context(), id, body.Available); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		switch r.Method {
		case http.MethodDelete:
			if err := registry.Deregister(r.Context(), path); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func newAssignmentHandler(registry *coordinator.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID, ok := strings.CutSuffix(strings.TrimPrefix(r.URL.Path, "/docs/"), "/assignment")
		if !ok || docID == "" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		assignment, err := registry.Assignment(r.Context(), docID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(assignment)
	}
}
