package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/framelight/previz-server/internal/app"
	"github.com/framelight/previz-server/internal/config"
	"github.com/framelight/previz-server/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the previz server",
	RunE:  runApp,
}

func init() {
	flags := runCmd.Flags()

	flags.Int("port", 8881, "Port to run the server on")
	flags.String("host", "localhost", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration")
	flags.Bool("disable-auth", false, "Disable authentication when receiving requests")
	flags.String("filesystem-type", "local", "Filesystem type: 'local' or 's3'")
	flags.String("public-dir", "", "Path where static files should be served from")

	flags.String("db-dsn", "file:./data/previz.db", "Database DSN (connection URL or path)")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region-name", "", "S3 region name")
	flags.String("s3-bucket-name", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-vanity-url", "", "Public URL for S3 files")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	viper.BindPFlags(flags)
	bindEnvs()
}

func bindEnvs() {
	// Core settings (PREVIZ_ prefix)
	// Example: PREVIZ_PORT
	viper.BindEnv("port")
	viper.BindEnv("host")
	viper.BindEnv("environment")
	viper.BindEnv("disable_auth")
	viper.BindEnv("filesystem_type")
	viper.BindEnv("public_dir")

	viper.BindEnv("db.dsn")

	// S3 bindings (PREVIZ_ prefix)
	// Example: PREVIZ_S3_ACCESS_KEY
	viper.BindEnv("s3.access_key")
	viper.BindEnv("s3.secret_key")
	viper.BindEnv("s3.region_name")
	viper.BindEnv("s3.bucket_name")
	viper.BindEnv("s3.folder")
	viper.BindEnv("s3.vanity_url")
	viper.BindEnv("s3.endpoint_url")

	// External API services (does NOT use the PREVIZ_ prefix)
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("replicate.api_key", "REPLICATE_API_KEY")
	viper.BindEnv("fal.api_key", "FAL_API_KEY")
}

func runApp(_ *cobra.Command, _ []string) error {
	app, err := createNewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	server, err := runServer(app)
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			fmt.Println("Server stopped successfully")
			return nil
		}

		return err
	}

	<-signalc
	return server.Stop(app.Context())
}

func createNewApp() (*app.App, error) {
	return app.NewApp(config.MustGetConfig(),
		app.WithDBInitialization(),
		app.WithFileStorage(),
		app.WithAdapters(),
		app.WithPlanner(),
		app.WithAnalysis(),
		app.WithPipeline(),
	)
}

func runServer(app *app.App) (*server.Server, error) {
	server, err := server.NewServer(app.Config())
	if err != nil {
		return nil, err
	}

	server.SetupRoutes(app)

	errc := make(chan error, 1)
	go func() {
		fmt.Printf("Previz server started on port %v\n", app.Config().Port)
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		return nil, err
	default:
		return server, nil
	}
}
