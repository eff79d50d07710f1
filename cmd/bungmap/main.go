// Command bungmap is a headless map client. It drives the same stores and
// state machine as a graphical client against a recorded map widget, reading
// commands line by line from stdin.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FACorreiaa/bungmap/internal/app"
	"github.com/FACorreiaa/bungmap/internal/domain/auth"
	"github.com/FACorreiaa/bungmap/internal/domain/mapview"
	"github.com/FACorreiaa/bungmap/internal/domain/places"
	"github.com/FACorreiaa/bungmap/internal/domain/reviews"
	"github.com/FACorreiaa/bungmap/internal/remote"
	"github.com/FACorreiaa/bungmap/internal/types"
	"github.com/FACorreiaa/bungmap/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	offline := flag.Bool("offline", cfg.Client.APIBaseURL == "", "use an in-memory store instead of the API")
	apiURL := flag.String("api", cfg.Client.APIBaseURL, "base URL of the bungmap API")
	email := flag.String("email", cfg.Client.Email, "account email")
	password := flag.String("password", cfg.Client.Password, "account password")
	signUp := flag.Bool("signup", false, "create the account before signing in")
	lat := flag.Float64("lat", cfg.Map.CenterLat, "reported device latitude")
	lng := flag.Float64("lng", cfg.Map.CenterLng, "reported device longitude")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Observability.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, provider := connect(cfg, *offline, *apiURL, logger)
	center := types.Coordinate{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng}
	widget := mapview.NewRecorder(center, cfg.Map.Zoom, logger)

	client := app.New(app.Deps{
		Session:        auth.NewSession(provider, cfg.Auth.AdminEmail, logger),
		Places:         places.NewStore(store, logger),
		Reviews:        reviews.NewStore(store, logger),
		Adapter:        mapview.NewAdapter(widget, logger),
		Locator:        mapview.StaticLocator{Position: types.Coordinate{Lat: *lat, Lng: *lng}},
		Notifier:       &printNotifier{out: os.Stdout},
		Logger:         logger,
		CenterTracking: cfg.Map.CenterTracking,
	})
	if err := client.Start(ctx); err != nil {
		logger.Error("failed to start client", slog.Any("error", err))
		os.Exit(1)
	}
	defer client.Close()

	if *email != "" && client.Identity() == nil {
		_, err := client.SignIn(ctx, types.Credentials{
			Email:       *email,
			Password:    *password,
			DisplayName: cfg.Client.DisplayName,
			SignUp:      *signUp,
		})
		if err != nil {
			logger.Error("sign in failed", slog.Any("error", err))
		}
	}

	sh := NewShell(client, widget, os.Stdout)
	if err := sh.Run(ctx, os.Stdin); err != nil {
		logger.Error("shell stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// connect picks the remote store and the auth provider.
func connect(cfg *config.Config, offline bool, apiURL string, logger *slog.Logger) (remote.Store, auth.Provider) {
	if offline || apiURL == "" {
		logger.Info("running offline")
		return remote.NewMemoryStore(), auth.LocalProvider{}
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	authClient := remote.NewAuthClient(httpClient, apiURL, logger)
	if cfg.Client.Token != "" {
		authClient.SetToken(cfg.Client.Token)
	}
	return remote.NewConnectStore(httpClient, apiURL, authClient, logger), authClient
}

type printNotifier struct {
	out io.Writer
}

func (n *printNotifier) Notify(_ context.Context, notice app.Notice) {
	if notice.Err != nil {
		fmt.Fprintf(n.out, "[%s] %s (%v)\n", notice.Kind, notice.Message, notice.Err)
		return
	}
	fmt.Fprintf(n.out, "[%s] %s\n", notice.Kind, notice.Message)
}
