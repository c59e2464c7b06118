package main

import (
	"context"
	"fmt"

	"image-server/internal/app"
	"image-server/internal/config"
	"image-server/internal/domain"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

type imageService interface {
	ListImages(ctx context.Context, base domain.BaseURL, page, pageSize int) (*domain.ImagePage, error)
	DeleteImage(ctx context.Context, id string) error
	DeleteAllImages(ctx context.Context) (*domain.PurgeResult, error)
	RegenerateThumbnail(ctx context.Context, id string) (*domain.Image, error)
}

var (
	images  imageService
	deps    *app.Deps
	baseURL string
)

var rootCmd = &cobra.Command{
	Use:   "imagectl",
	Short: "Administer stored images",
	Long: `imagectl talks to the same storage and metadata database as the
image server. Configuration is read from CONFIG_PATH or the environment.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initializeApp,
	PersistentPostRunE: shutdownApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "scheme and host used to print image URLs")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(regenCmd)
}

func initializeApp(cmd *cobra.Command, args []string) error {
	if images != nil {
		return nil
	}

	zlog.Init()

	cfg, err := config.MustLoad()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	d, err := app.BuildDeps(cmd.Context(), cfg, nil, &zlog.Logger)
	if err != nil {
		return err
	}

	deps = d
	images = d.Images
	return nil
}

func shutdownApp(cmd *cobra.Command, args []string) error {
	if deps == nil {
		return nil
	}
	return deps.Close()
}

func getContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
