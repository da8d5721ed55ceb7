package signature

import (
	"fmt"
	"image"
	"runtime/debug"

	"imagededup/config"
	apperrors "imagededup/errors"
	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"
)

// Generator builds signature bundles. It holds no mutable state and is safe
// for concurrent use.
type Generator struct {
	provider imageprocessor.HashProvider
	params   config.AnalysisParams
	keys     []types.SignatureKey
}

// NewGenerator expects params that already passed Validate
func NewGenerator(provider imageprocessor.HashProvider, params config.AnalysisParams) *Generator {
	g := &Generator{provider: provider, params: params}
	for _, angle := range params.SignatureAngles() {
		for _, scale := range params.Scales {
			for _, size := range params.HashSizes {
				for _, alg := range params.Algorithms {
					g.keys = append(g.keys, types.SignatureKey{
						Algorithm: alg,
						Angle:     angle,
						Scale:     scale,
						HashSize:  size,
					})
				}
			}
		}
	}
	return g
}

// Keys returns the configured cross-product in generation order
func (g *Generator) Keys() []types.SignatureKey {
	return g.keys
}

// Provider returns the hash provider in use
func (g *Generator) Provider() imageprocessor.HashProvider {
	return g.provider
}

// BuildBundle hashes img for every key. Each angle is rendered once, each
// scale of that rotation once, and every size and algorithm reuses it.
func (g *Generator) BuildBundle(img image.Image) *types.SignatureBundle {
	bundle := types.NewSignatureBundle()

	if g.params.DetectPureColor {
		uniform, err := g.provider.IsUniformColor(img, g.params.PureColorStdThreshold)
		if err != nil {
			logging.WithError(err).Debug("uniformity test failed")
		}
		bundle.Uniform = uniform
	}

	working := imageprocessor.Shrink(img, g.params.WorkingSize)

	for _, angle := range g.params.SignatureAngles() {
		rotated := imageprocessor.Rotate(working, angle)

		for _, scale := range g.params.Scales {
			scaled := imageprocessor.Scale(rotated, scale)

			for _, size := range g.params.HashSizes {
				for _, alg := range g.params.Algorithms {
					key := types.SignatureKey{Algorithm: alg, Angle: angle, Scale: scale, HashSize: size}
					h, err := imageprocessor.ComputeHash(g.provider, alg, scaled, size)
					if err != nil {
						bundle.Failures[key] = err.Error()
						continue
					}
					bundle.Hashes[key] = h
				}
			}
		}
	}
	return bundle
}

// Process fills in the content hash and bundle of rec. Decode failures and
// panics leave rec with a failed bundle and a non-nil Err.
func (g *Generator) Process(rec *types.ImageRecord) {
	defer func() {
		if r := recover(); r != nil {
			logging.DebugLog("panic while hashing %s: %v\n%s", rec.Path, r, debug.Stack())
			g.Fail(rec, apperrors.NewInternalError("panic during signature generation", fmt.Errorf("%v", r)).WithPath(rec.Path))
		}
	}()

	if rec.ContentHash == "" {
		sum, err := ContentHash(rec.Path)
		if err != nil {
			g.Fail(rec, apperrors.NewDecodeError("cannot read file", err).WithPath(rec.Path))
			return
		}
		rec.ContentHash = sum
	}

	img, format, err := imageprocessor.DecodeImage(rec.Path)
	if err != nil {
		g.Fail(rec, err)
		return
	}
	rec.Format = format
	rec.Width = img.Bounds().Dx()
	rec.Height = img.Bounds().Dy()
	rec.Bundle = g.BuildBundle(img)
}

// Fail marks rec as failed with err recorded against every configured key
func (g *Generator) Fail(rec *types.ImageRecord, err error) {
	bundle := types.NewSignatureBundle()
	bundle.Failed = true
	for _, key := range g.keys {
		bundle.Failures[key] = err.Error()
	}
	rec.Bundle = bundle
	rec.Err = err
}
