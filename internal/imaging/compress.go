package imaging

import (
	"log/slog"
	"math"

	"github.com/invoicevault/invoicevault/internal/common"
)

// Compression defaults.
const (
	DefaultReferenceBudget = 1 * 1024 * 1024
	DefaultStartQuality    = 0.85
	DefaultMaxAttempts     = 5

	qualityDecay = 0.75
	qualityFloor = 0.1
)

// CompressOptions tune one compression run. Zero values fall back to the
// defaults above.
type CompressOptions struct {
	TargetBytes     int // 0 means no byte target: single encode at StartQuality
	ReferenceBudget int
	MaxWidth        int
	MaxHeight       int
	StartQuality    float64
	OutputFormat    string
	MaxAttempts     int
}

// CompressResult reports what a compression run did.
type CompressResult struct {
	Data           []byte
	Width          int
	Height         int
	OriginalSize   int
	CompressedSize int
	Ratio          float64
	Attempts       int
	FinalQuality   float64
}

// Compressor shrinks encoded images to a target byte budget.
type Compressor struct {
	logger *slog.Logger
}

func NewCompressor(logger *slog.Logger) *Compressor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compressor{logger: logger}
}

// Compress fits the image within the configured bounds and then iterates on
// JPEG quality until the encoded size meets the target budget or attempts run
// out. An input that already satisfies both bounds and budget is returned
// unchanged, which makes Compress idempotent at a fixed target.
func (c *Compressor) Compress(data []byte, opts CompressOptions) (*CompressResult, error) {
	if opts.StartQuality <= 0 || opts.StartQuality > 1 {
		opts.StartQuality = DefaultStartQuality
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.ReferenceBudget <= 0 {
		opts.ReferenceBudget = DefaultReferenceBudget
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = FormatJPEG
	}

	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	targetW, targetH := FitWithin(srcW, srcH, opts.MaxWidth, opts.MaxHeight)

	// Already within bounds and under budget: nothing to do. Checked before
	// the pre-shrink heuristic so that re-compressing an output at the same
	// target always returns it unchanged.
	if targetW == srcW && targetH == srcH &&
		opts.TargetBytes > 0 && len(data) <= opts.TargetBytes {
		c.logger.Debug("compress.noop", "size", len(data), "target", opts.TargetBytes)
		return &CompressResult{
			Data:           data,
			Width:          srcW,
			Height:         srcH,
			OriginalSize:   len(data),
			CompressedSize: len(data),
			Ratio:          1.0,
			Attempts:       1,
			FinalQuality:   opts.StartQuality,
		}, nil
	}

	// Aggressive targets get a proportional pre-shrink: encoded size roughly
	// tracks pixel count, so halving the budget scales each axis by sqrt(1/2).
	if opts.TargetBytes > 0 && opts.TargetBytes < opts.ReferenceBudget/2 {
		f := math.Sqrt(float64(opts.TargetBytes) / float64(opts.ReferenceBudget))
		targetW, targetH = FitWithin(targetW, targetH,
			int(math.Round(float64(targetW)*f)), int(math.Round(float64(targetH)*f)))
	}

	work := img
	if targetW != srcW || targetH != srcH {
		work = Scale(img, targetW, targetH)
	}

	quality := opts.StartQuality
	var out []byte
	attempts := 0
	for {
		attempts++
		out, err = Encode(work, opts.OutputFormat, quality)
		if err != nil {
			return nil, err
		}
		if opts.TargetBytes <= 0 || len(out) <= opts.TargetBytes || attempts >= opts.MaxAttempts {
			break
		}
		quality = math.Max(qualityFloor, quality*qualityDecay)
	}

	if len(out) == 0 {
		return nil, common.Errorf(common.CodeCompressionFailed, "compression produced no output")
	}

	res := &CompressResult{
		Data:           out,
		Width:          targetW,
		Height:         targetH,
		OriginalSize:   len(data),
		CompressedSize: len(out),
		Ratio:          float64(len(out)) / float64(len(data)),
		Attempts:       attempts,
		FinalQuality:   quality,
	}
	c.logger.Info("compress.ok",
		"original_bytes", res.OriginalSize,
		"compressed_bytes", res.CompressedSize,
		"ratio", res.Ratio,
		"attempts", res.Attempts,
		"final_quality", res.FinalQuality,
		"width", targetW,
		"height", targetH,
	)
	return res, nil
}
