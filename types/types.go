package types

import (
	"fmt"
	"time"

	"github.com/corona10/goimagehash"
)

// Algorithm names a perceptual hash family
type Algorithm string

const (
	DHash Algorithm = "dhash"
	PHash Algorithm = "phash"
	AHash Algorithm = "ahash"
)

// AllAlgorithms lists the supported algorithms in canonical order
var AllAlgorithms = []Algorithm{DHash, PHash, AHash}

// DisplayName returns the conventional spelling used in reasons and reports
func (a Algorithm) DisplayName() string {
	switch a {
	case DHash:
		return "dHash"
	case PHash:
		return "pHash"
	case AHash:
		return "aHash"
	default:
		return string(a)
	}
}

// Kind maps the algorithm onto the goimagehash kind stored with each hash
func (a Algorithm) Kind() goimagehash.Kind {
	switch a {
	case DHash:
		return goimagehash.DHash
	case PHash:
		return goimagehash.PHash
	case AHash:
		return goimagehash.AHash
	default:
		return goimagehash.Unknown
	}
}

// Valid reports whether the algorithm is supported
func (a Algorithm) Valid() bool {
	return a.Kind() != goimagehash.Unknown
}

// SignatureKey identifies one entry of a signature bundle
type SignatureKey struct {
	Algorithm Algorithm `json:"algorithm"`
	Angle     int       `json:"angle"`
	Scale     float64   `json:"scale"`
	HashSize  int       `json:"hash_size"`
}

func (k SignatureKey) String() string {
	return fmt.Sprintf("%s@%d°x%.2f/%d", k.Algorithm, k.Angle, k.Scale, k.HashSize)
}

// SignatureBundle holds every hash computed for one image. Each configured
// key is either in Hashes or in Failures.
type SignatureBundle struct {
	Hashes   map[SignatureKey]*goimagehash.ExtImageHash
	Failures map[SignatureKey]string
	Uniform  bool
	// Failed marks a bundle whose image could not be decoded at all
	Failed bool
}

// NewSignatureBundle allocates an empty bundle
func NewSignatureBundle() *SignatureBundle {
	return &SignatureBundle{
		Hashes:   make(map[SignatureKey]*goimagehash.ExtImageHash),
		Failures: make(map[SignatureKey]string),
	}
}

// Lookup returns the hash stored under key
func (b *SignatureBundle) Lookup(key SignatureKey) (*goimagehash.ExtImageHash, bool) {
	if b == nil {
		return nil, false
	}
	h, ok := b.Hashes[key]
	return h, ok
}

// Entries returns the number of hashes produced
func (b *SignatureBundle) Entries() int {
	if b == nil {
		return 0
	}
	return len(b.Hashes)
}

// ImageRecord is one candidate file of an analysis run
type ImageRecord struct {
	Path        string           `json:"path"`
	Size        int64            `json:"size"`
	ModTime     time.Time        `json:"modified_at"`
	Format      string           `json:"format,omitempty"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	ContentHash string           `json:"content_hash,omitempty"`
	Bundle      *SignatureBundle `json:"-"`
	Err         error            `json:"-"`
	FromCache   bool             `json:"-"`
}

// Uniform reports whether the record was flagged as a uniform-color image
func (r *ImageRecord) Uniform() bool {
	return r.Bundle != nil && r.Bundle.Uniform
}

// Failed reports whether the record must be excluded from matching
func (r *ImageRecord) Failed() bool {
	return r.Err != nil || r.Bundle == nil || r.Bundle.Failed
}

// AlgorithmDistance is one per-algorithm comparison outcome
type AlgorithmDistance struct {
	Algorithm Algorithm `json:"algorithm"`
	Distance  int       `json:"distance"`
	Threshold int       `json:"threshold"`
	Passed    bool      `json:"passed"`
	Angle     int       `json:"angle"`
}

// MatchResult describes the comparison of two image records
type MatchResult struct {
	IsMatch   bool                `json:"is_match"`
	Exact     bool                `json:"exact"`
	Angle     int                 `json:"angle"`
	Scale     float64             `json:"scale"`
	Distances []AlgorithmDistance `json:"distances,omitempty"`
	Passed    []Algorithm         `json:"passed,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// Edge records a match that contributed to a union
type Edge struct {
	A         string              `json:"a"`
	B         string              `json:"b"`
	Exact     bool                `json:"exact"`
	Angle     int                 `json:"angle"`
	Scale     float64             `json:"scale"`
	Distances []AlgorithmDistance `json:"distances,omitempty"`
	Passed    []Algorithm         `json:"passed,omitempty"`
}

// DuplicateGroup is one connected component of the match graph
type DuplicateGroup struct {
	ID      int      `json:"id"`
	Members []string `json:"members"`
	Reason  string   `json:"reason"`
	Edges   []Edge   `json:"edges"`
}

// FailedImage describes a file excluded from matching
type FailedImage struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary holds the counts handed to the export collaborator
type Summary struct {
	TotalImages     int            `json:"total_images"`
	DuplicateGroups int            `json:"duplicate_groups"`
	DuplicateImages int            `json:"duplicate_images"`
	UniformImages   int            `json:"uniform_images"`
	FailedImages    int            `json:"failed_images"`
	CachedImages    int            `json:"cached_images"`
	Unprocessed     int            `json:"unprocessed,omitempty"`
	Comparisons     int            `json:"comparisons"`
	Prefiltered     int            `json:"prefiltered"`
	CompareErrors   int            `json:"compare_errors,omitempty"`
	Uniform         []string       `json:"uniform,omitempty"`
	Failed          []FailedImage  `json:"failed,omitempty"`
	Reasons         map[string]int `json:"reasons,omitempty"`
	Interrupted     bool           `json:"interrupted"`
	Elapsed         time.Duration  `json:"elapsed_ns"`
}

// Report is the result of one analysis run
type Report struct {
	Groups  []DuplicateGroup `json:"groups"`
	Summary Summary          `json:"summary"`
}

// Stage names a phase of the analysis pipeline
type Stage string

const (
	StageEnumerate Stage = "enumerate"
	StageSignature Stage = "signature"
	StageMatching  Stage = "matching"
	StageDone      Stage = "done"
)

// ProgressEvent is emitted per completed unit of work
type ProgressEvent struct {
	Stage        Stage  `json:"stage"`
	Index        int    `json:"index"`
	Total        int    `json:"total"`
	CurrentFile  string `json:"current_file,omitempty"`
	Combinations int    `json:"combinations_count"`
	Failed       bool   `json:"failed,omitempty"`
}

// SendProgress delivers ev without blocking. Events are dropped when the
// consumer falls behind; the next event carries the newer index anyway.
func SendProgress(ch chan<- ProgressEvent, ev ProgressEvent) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}
