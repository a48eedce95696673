// Command extract-invoice runs the intake, rasterization, compression and
// extraction stages on a local file and prints the extracted fields as JSON.
// No archive store or database involved; useful for trying out prompts and
// rasterization settings.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/invoicevault/invoicevault/constants"
	"github.com/invoicevault/invoicevault/internal/common"
	"github.com/invoicevault/invoicevault/internal/imaging"
	"github.com/invoicevault/invoicevault/internal/intake"
	"github.com/invoicevault/invoicevault/internal/llm"
	"github.com/invoicevault/invoicevault/internal/llm/openai"
	"github.com/invoicevault/invoicevault/internal/pdf"
)

func main() {
	maxPages := flag.Int("max-pages", 3, "page limit before falling back to page 1 only")
	targetKB := flag.Int("target-kb", 1024, "compression byte budget in KiB")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract-invoice [flags] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read file", "path", path, "error", err)
		os.Exit(1)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if err := intake.Validate(intake.FileInfo{
		Name:        filepath.Base(path),
		Size:        int64(len(data)),
		ContentType: contentType,
	}); err != nil {
		logger.Error("file rejected", "error", err)
		os.Exit(1)
	}

	working := data
	if constants.IsPDF(contentType) {
		raster := pdf.NewRasterizer(logger)
		strat, err := raster.SelectStrategy(data, pdf.StrategyOptions{
			MaxPages: *maxPages,
			Render: pdf.RenderOptions{
				MaxWidth:  cfg.Pipeline.MaxImageWidth,
				MaxHeight: cfg.Pipeline.MaxImageHeight,
			},
		})
		if err != nil {
			logger.Error("rasterization failed", "error", err)
			os.Exit(1)
		}
		logger.Info("rasterized", "strategy", strat.Strategy, "pages", strat.PageCount)
		working = strat.Data
	}

	compressed, err := imaging.NewCompressor(logger).Compress(working, imaging.CompressOptions{
		TargetBytes: *targetKB * 1024,
		MaxWidth:    cfg.Pipeline.MaxImageWidth,
		MaxHeight:   cfg.Pipeline.MaxImageHeight,
	})
	if err != nil {
		logger.Error("compression failed", "error", err)
		os.Exit(1)
	}
	logger.Info("compressed",
		"original_bytes", compressed.OriginalSize,
		"compressed_bytes", compressed.CompressedSize,
		"attempts", compressed.Attempts,
	)

	extractor := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Lenient:     true,
	}, logger)
	extraction, err := extractor.ExtractInvoice(context.Background(), llm.ImageInput{
		Data:        compressed.Data,
		ContentType: imaging.ContentTypeFor(imaging.FormatJPEG),
	})
	if err != nil {
		logger.Error("extraction failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(extraction.Fields, "", "  ")
	fmt.Println(string(out))
}
