package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/benjaminschreck/docxstream/pkg/docxstream"
)

const envPrefix = "DOCXSTREAM"

type renderOptions struct {
	template string
	data     string
	output   string
	config   string
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template with data",
		Example: `  docxstream render --template invoice.docx --data invoice.json --out out/invoice.docx
  DOCXSTREAM_DPI=300 docxstream render -t report.docx -d report.json -o report-filled.docx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(v, opts.config)
			if err != nil {
				return err
			}
			return runRender(cmd, opts, config)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.template, "template", "t", "", "Template .docx file")
	flags.StringVarP(&opts.data, "data", "d", "", "JSON data file (- for stdin)")
	flags.StringVarP(&opts.output, "out", "o", "", "Output .docx file")
	flags.StringVar(&opts.config, "config", "", "Config file (yaml, toml or json)")
	flags.Float64("dpi", 0, "Pixels per inch used to size images")
	flags.Float64("max-image-emu", 0, "Cap for the larger image side, in EMU")
	flags.String("log-level", "", "Log level: debug, info, warn, error, off")
	flags.String("temp-dir", "", "Directory for the buffered document body")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagRequired("out")

	for _, name := range []string{"dpi", "max-image-emu", "log-level", "temp-dir"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}
	return cmd
}

// loadConfig layers flags over DOCXSTREAM_* environment variables over an
// optional config file over the library defaults.
func loadConfig(v *viper.Viper, file string) (*docxstream.Config, error) {
	defaults := docxstream.DefaultConfig()
	v.SetDefault("dpi", defaults.DPI)
	v.SetDefault("max-image-emu", defaults.MaxImageEMU)
	v.SetDefault("default-image-width", defaults.DefaultImageWidth)
	v.SetDefault("default-image-height", defaults.DefaultImageHeight)
	v.SetDefault("log-level", defaults.LogLevel)
	v.SetDefault("temp-dir", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &docxstream.Config{
		DPI:                v.GetFloat64("dpi"),
		MaxImageEMU:        v.GetFloat64("max-image-emu"),
		DefaultImageWidth:  v.GetFloat64("default-image-width"),
		DefaultImageHeight: v.GetFloat64("default-image-height"),
		LogLevel:           strings.ToLower(v.GetString("log-level")),
		TempDir:            v.GetString("temp-dir"),
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func runRender(cmd *cobra.Command, opts *renderOptions, config *docxstream.Config) error {
	docxstream.SetGlobalConfig(config)
	logger := docxstream.GetLogger().WithField("template", opts.template)

	data, err := readData(cmd, opts.data)
	if err != nil {
		return err
	}

	gen := docxstream.NewGenerator(config)
	gen.SetLogger(logger)
	if err := gen.GenerateFile(cmd.Context(), opts.template, opts.output, data); err != nil {
		return fmt.Errorf("render %s: %w", opts.template, err)
	}

	logger.WithField("output", opts.output).Info("Document generated")
	return nil
}

func readData(cmd *cobra.Command, path string) (docxstream.PlaceholderMap, error) {
	if path == "-" {
		return docxstream.DecodeData(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()
	return docxstream.DecodeData(f)
}
