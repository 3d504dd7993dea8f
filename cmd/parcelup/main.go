// Command parcelup uploads files to a parcel endpoint from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	parcel "github.com/SinghAman21/silentparcel-uploader"
	"github.com/SinghAman21/silentparcel-uploader/parceltypes"
)

var (
	flagEndpoint     string
	flagChunkSize    int64
	flagConcurrency  int
	flagRetries      int
	flagPassword     string
	flagMaxDownloads int
	flagQuiet        bool
	flagVerbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "parcelup [files...]",
	Short: "Upload files to a parcel endpoint",
	Long: `parcelup uploads one or more files to a parcel endpoint.

Small batches travel in a single request; larger ones are split into
chunks and uploaded concurrently with automatic retry.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		bindFlags(cmd)
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagEndpoint, "endpoint", "e", "", "upload endpoint URL")
	rootCmd.PersistentFlags().Int64Var(&flagChunkSize, "chunk-size", 0, "chunk size in bytes (default 5 MiB)")
	rootCmd.PersistentFlags().IntVarP(&flagConcurrency, "concurrency", "c", 0, "maximum chunks in flight (default 3)")
	rootCmd.PersistentFlags().IntVar(&flagRetries, "retries", 0, "attempts per chunk including the first (default 3)")
	rootCmd.PersistentFlags().StringVarP(&flagPassword, "password", "p", "", "protect the batch with a password")
	rootCmd.PersistentFlags().IntVar(&flagMaxDownloads, "max-downloads", 0, "limit how many times the batch may be downloaded")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress the progress bar")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	viper.SetEnvPrefix("PARCEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("parcelup")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home + "/.config")
	}
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig()
}

// bindFlags lets config file and environment values back unset flags.
func bindFlags(cmd *cobra.Command) {
	_ = viper.BindPFlags(cmd.PersistentFlags())
	if flagEndpoint == "" {
		flagEndpoint = viper.GetString("endpoint")
	}
	if flagChunkSize == 0 {
		flagChunkSize = viper.GetInt64("chunk-size")
	}
	if flagConcurrency == 0 {
		flagConcurrency = viper.GetInt("concurrency")
	}
	if flagRetries == 0 {
		flagRetries = viper.GetInt("retries")
	}
	if flagPassword == "" {
		flagPassword = viper.GetString("password")
	}
}

func runUpload(cmd *cobra.Command, args []string) error {
	if flagEndpoint == "" {
		return fmt.Errorf("no endpoint: pass --endpoint or set PARCEL_ENDPOINT")
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	clientOpts := []parceltypes.Option{
		parcel.WithLogger(logger),
	}
	if flagChunkSize > 0 {
		clientOpts = append(clientOpts, parcel.WithChunkSize(flagChunkSize))
	}
	if flagConcurrency > 0 {
		clientOpts = append(clientOpts, parcel.WithConcurrency(flagConcurrency))
	}
	if flagRetries > 0 {
		clientOpts = append(clientOpts, parcel.WithMaxRetries(flagRetries))
	}

	client, err := parcel.New(flagEndpoint, clientOpts...)
	if err != nil {
		return err
	}

	files := make([]parceltypes.FileDescriptor, len(args))
	for i, path := range args {
		files[i] = parceltypes.FileDescriptor{LocalPath: path}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uploadOpts := []parceltypes.UploadOption{}
	if flagPassword != "" {
		uploadOpts = append(uploadOpts, parcel.WithPassword(flagPassword))
	}
	if flagMaxDownloads > 0 {
		uploadOpts = append(uploadOpts, parcel.WithMaxDownloads(flagMaxDownloads))
	}
	if !flagQuiet {
		uploadOpts = append(uploadOpts, parcel.WithProgressFunc(newBarRenderer()))
	}

	result, err := client.Upload(ctx, files, uploadOpts...)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("download: %s\n", result.DownloadLocation)
	if result.EditLocation != "" {
		fmt.Printf("edit:     %s\n", result.EditLocation)
	}
	return nil
}

// newBarRenderer returns a progress callback backed by a terminal bar. The
// bar is created lazily from the first snapshot so it knows the batch size.
func newBarRenderer() func(parceltypes.ProgressSnapshot) {
	var bar *progressbar.ProgressBar
	return func(s parceltypes.ProgressSnapshot) {
		if bar == nil {
			bar = progressbar.NewOptions64(s.TotalBytes,
				progressbar.OptionSetDescription("uploading"),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(30),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		_ = bar.Set64(s.UploadedBytes)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
