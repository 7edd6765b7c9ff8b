package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/caracol-labs/salesmachine/internal/memory"
	"github.com/caracol-labs/salesmachine/internal/pipeline"
	"github.com/caracol-labs/salesmachine/pkg/telegram"
)

var servePort int

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for prospecting requests and decision callbacks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tg := telegram.NewClient(cfg.Telegram.Token, telegram.WithBaseURL(cfg.Telegram.BaseURL))
		history := memory.New(cfg.Memory.WindowSize)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/requests", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text        string `json:"text"`
				RequesterID string `json:"requester_id"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if body.Text == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
				return
			}

			history.Add(body.RequesterID, body.Text)
			if err := env.Pipeline.PublishCommand(req.Context(), pipeline.Command{
				RequestText: body.Text,
				RequesterID: body.RequesterID,
			}); err != nil {
				zap.L().Error("publish prospecting request", zap.Error(err))
				writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not enqueue request"})
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		r.Get("/requests/{requesterID}", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, history.Recent(chi.URLParam(req, "requesterID")))
		})

		r.Post("/callback", func(w http.ResponseWriter, req *http.Request) {
			var update telegram.Update
			if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid update"})
				return
			}

			switch {
			case update.CallbackQuery != nil:
				handleCallback(req, env, tg, update.CallbackQuery)
			case update.Message != nil && update.Message.Text != "":
				requesterID := strconv.FormatInt(update.Message.Chat.ID, 10)
				history.Add(requesterID, update.Message.Text)
				if err := env.Pipeline.PublishCommand(req.Context(), pipeline.Command{
					RequestText: update.Message.Text,
					RequesterID: requesterID,
				}); err != nil {
					zap.L().Error("publish prospecting request", zap.Error(err))
				}
			}

			// Telegram retries non-2xx responses, so decode problems aside the
			// webhook always acknowledges.
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownServer(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// handleCallback turns a preview button press into a decision message and
// acknowledges the button so the client stops its spinner.
func handleCallback(req *http.Request, env *pipelineEnv, tg telegram.Client, cb *telegram.CallbackQuery) {
	action, domain := pipeline.ParseCallback(cb.Data)
	if action == "" {
		zap.L().Warn("ignoring unknown callback", zap.String("data", cb.Data))
		return
	}

	msg := pipeline.DecisionMsg{Action: action, Domain: domain}
	if cb.Message != nil {
		msg.RequesterID = strconv.FormatInt(cb.Message.Chat.ID, 10)
		msg.MessageRef = cb.Message.MessageID
	}
	if err := env.Pipeline.PublishDecision(req.Context(), msg); err != nil {
		zap.L().Error("publish decision",
			zap.String("domain", domain),
			zap.String("action", action),
			zap.Error(err),
		)
		return
	}

	if err := tg.AnswerCallbackQuery(req.Context(), cb.ID, "Decisão registrada"); err != nil {
		zap.L().Warn("answer callback query failed", zap.Error(err))
	}
}

// shutdownServer drains in-flight requests with a fresh deadline; the
// signal context that triggered it is already canceled.
func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
