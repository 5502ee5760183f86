package cache

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey returns the key of the processed artifact for a source.
	ArtifactKey(source string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the settings that change a processed artifact.
type ArtifactKeyOpts struct {
	ByteOrder    string `json:"byte_order"`
	PointerWidth int    `json:"pointer_width"`
	Format       string `json:"format"`
	Version      int    `json:"version"`
	// Variant separates artifacts built with different processing hooks.
	Variant string `json:"variant,omitempty"`
}

// DefaultKeyer hashes the source name together with the decode settings.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// ArtifactKey generates a key for a processed artifact. source should be
// the base name of the BGF file so a dataset directory can be moved without
// invalidating its cache.
func (k *DefaultKeyer) ArtifactKey(source string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", source, opts)
}

var _ Keyer = (*DefaultKeyer)(nil)
