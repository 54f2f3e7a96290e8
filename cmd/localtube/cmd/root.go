package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-localtube/internal/api"
	"go-localtube/internal/catalog"
	"go-localtube/internal/config"
	"go-localtube/internal/models"
	"go-localtube/internal/probe"
	"go-localtube/internal/thumbs"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

// storagePathFlag holds the value of the --storage-path flag
var storagePathFlag string

// backendURLFlag holds the value of the --backend-url flag
var backendURLFlag string

// apiTimeoutFlag holds the value of the --api-timeout flag
var apiTimeoutFlag int

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the globally configured HTTP transport
// (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "localtube",
	Short: "A local library for downloaded videos",
	Long: `localtube resolves video URLs into downloadable streams via a backend
service, downloads them into a managed storage directory, and keeps a
catalog with thumbnails, search and export on top.`,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	defer func() {
		if loggingTransport, ok := globalHttpTransport.(*api.LoggingTransport); ok && loggingTransport != nil {
			if err := loggingTransport.Close(); err != nil {
				log.WithError(err).Error("Error closing API log file")
			}
		}
	}()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.toml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log backend requests/responses to api.log (overrides config)")
	rootCmd.PersistentFlags().StringVar(&storagePathFlag, "storage-path", "", "Directory holding downloaded videos (overrides config)")
	rootCmd.PersistentFlags().StringVar(&backendURLFlag, "backend-url", "", "Base URL of the resolve/metadata backend (overrides config)")
	rootCmd.PersistentFlags().IntVar(&apiTimeoutFlag, "api-timeout", -1, "Timeout for backend HTTP client in seconds (overrides config, -1 uses config default)")
}

// loadGlobalConfig attempts to load the configuration and applies flag
// overrides. It also sets up the global HTTP transport based on logging
// settings.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	var err error
	globalConfig, err = config.LoadConfig(cfgFile)
	if err != nil {
		// Not fatal: every knob has a default, and --storage-path can
		// stand in for a config file entirely.
		log.WithError(err).Warnf("Failed to load configuration from %s, using defaults", cfgFile)
		globalConfig = config.DefaultConfig()
	}

	if cmd.Flags().Changed("log-api") {
		globalConfig.LogApiRequests = logApiFlag
	}
	if cmd.Flags().Changed("storage-path") {
		if storagePathFlag != "" {
			globalConfig.StoragePath = storagePathFlag
		} else {
			log.Warn("--storage-path flag provided but value is empty, ignoring.")
		}
	}
	if cmd.Flags().Changed("backend-url") && backendURLFlag != "" {
		globalConfig.BackendURL = backendURLFlag
	}
	if cmd.Flags().Changed("api-timeout") {
		if apiTimeoutFlag > 0 {
			globalConfig.ApiClientTimeoutSec = apiTimeoutFlag
		} else {
			log.Warnf("--api-timeout flag provided with invalid value %d, using config value: %d sec", apiTimeoutFlag, globalConfig.ApiClientTimeoutSec)
		}
	}

	// --- Setup Global HTTP Transport ---
	baseTransport := http.DefaultTransport
	globalHttpTransport = baseTransport
	if globalConfig.LogApiRequests {
		log.Debug("API request logging enabled, wrapping global HTTP transport.")
		loggingTransport, err := api.NewLoggingTransport(baseTransport, "api.log")
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			globalHttpTransport = loggingTransport
		}
	}

	return nil
}

// openCatalog opens the catalog configured globally, with an ffmpeg-backed
// prober for metadata refreshes.
func openCatalog() (*catalog.Catalog, error) {
	if globalConfig.StoragePath == "" {
		return nil, fmt.Errorf("storage path is not configured (--storage-path or config file)")
	}
	return catalog.Open(globalConfig.StoragePath, globalConfig.CatalogPath, probe.NewFFmpegProber())
}

// newBackendClient builds the backend API client from the global config.
func newBackendClient() *api.Client {
	httpClient := &http.Client{
		Timeout:   time.Duration(globalConfig.ApiClientTimeoutSec) * time.Second,
		Transport: globalHttpTransport,
	}
	return api.NewClient(globalConfig.BackendURL, httpClient)
}

// newThumbCache builds the thumbnail cache from the global config.
func newThumbCache() *thumbs.Cache {
	return thumbs.New(
		globalConfig.ThumbCachePath,
		probe.NewFFmpegProber(),
		globalConfig.ThumbProbeOffset,
		globalConfig.ThumbMemCapacity,
	)
}
