package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/coreybb/quire/api"
	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/processing"
	rh "github.com/coreybb/quire/route-handlers"
)

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cc.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.pool != nil {
				a.pool.Start(ctx)
			}
			go a.reaper.Run(ctx)

			router := api.SetupRoutes(api.Handlers{
				Users:           rh.NewUserHandler(a.store.Users),
				Posts:           rh.NewPostHandler(a.store.Posts),
				Projects:        rh.NewProjectHandler(a.store.Projects, a.store.Posts, a.store.Items, a.store.Chapters, a.assembler),
				Chapters:        rh.NewChapterHandler(a.store.Projects, a.store.Chapters),
				Generation:      rh.NewGenerationHandler(a.service, cc.cfg.Generation.Async),
				Artifacts:       rh.NewArtifactHandler(a.artifacts),
				Tick:            a.reaper.HandleTick,
				Auth:            a.store.Users,
				GenerateTimeout: cc.cfg.RenderTimeout(),
			})

			return startServer(ctx, cc.cfg.Server.Port, router, cc.cfg.ShutdownTimeout())
		},
	}
}

func startServer(ctx context.Context, port string, router http.Handler, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("server gracefully stopped")
	return nil
}

func newMigrateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := datastore.Open(cmd.Context(), datastore.Options{
				Driver: cc.cfg.Database.Driver,
				DSN:    cc.cfg.Database.DSN,
			})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := datastore.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newGenerateCommand(cc *commandContext) *cobra.Command {
	var format, email string

	cmd := &cobra.Command{
		Use:   "generate <project-id>",
		Short: "Render a project to PDF or EPUB without going through the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookFormat, err := processing.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cc.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.store.Users.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("resolve user %s: %w", email, err)
			}

			res, err := a.service.Generate(cmd.Context(), user.ID, args[0], bookFormat)
			if err != nil {
				var genErr *processing.GenerationError
				if errors.As(err, &genErr) {
					return fmt.Errorf("generation failed: %w", genErr.Err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", res.Message, res.URL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(models.BookFormatPDF), "Output format: pdf or epub")
	cmd.Flags().StringVarP(&email, "user", "u", "", "Email of the project owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newStatusCommand(cc *commandContext) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's generation status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cc.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.store.Users.GetUserByEmail(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("resolve user %s: %w", email, err)
			}
			state, err := a.service.Status(cmd.Context(), user.ID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(state))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "user", "u", "", "Email of the project owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newReclaimCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Fail generations whose lease has expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cc.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.reaper.Tick(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed %d generations\n", n)
			return nil
		},
	}
}

func renderStatus(state models.GenerationState) string {
	value := func(s *string) string {
		if s == nil || *s == "" {
			return "-"
		}
		return *s
	}
	generated := "-"
	if state.LastGeneratedAt != nil {
		generated = humanize.Time(*state.LastGeneratedAt)
	}
	status := value(state.Status)
	if state.Status == nil {
		status = "never generated"
	}

	return renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Status", status},
			{"Error", value(state.Error)},
			{"PDF", value(state.PDFURL)},
			{"EPUB", value(state.EPUBURL)},
			{"Last generated", generated},
		},
		nil,
	)
}
