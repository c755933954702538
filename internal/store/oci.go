package store

import (
	"fmt"
	"io"
	"os"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

const checkpointMediaType = types.MediaType("application/vnd.deckgen.slides.v1+json")

// PublishOCI pushes a checkpoint file as a single-layer OCI artifact and
// returns the reference pinned to the pushed manifest digest.
func PublishOCI(inPath string, ociRef string) (string, error) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		return "", fmt.Errorf("read checkpoint: %w", err)
	}
	ref, err := name.ParseReference(ociRef, name.WithDefaultRegistry("ghcr.io"))
	if err != nil {
		return "", fmt.Errorf("parse oci ref: %w", err)
	}

	layer := static.NewLayer(raw, checkpointMediaType)
	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return "", fmt.Errorf("append layer: %w", err)
	}
	img = mutate.MediaType(img, types.OCIManifestSchema1)

	if err := remote.Write(ref, img, remote.WithAuthFromKeychain(authn.DefaultKeychain)); err != nil {
		return "", fmt.Errorf("push oci artifact: %w", err)
	}
	digest, err := img.Digest()
	if err != nil {
		return "", fmt.Errorf("compute manifest digest: %w", err)
	}
	return ref.Context().Digest(digest.String()).String(), nil
}

// PullOCI fetches the first layer of ociRef into outPath.
func PullOCI(ociRef string, outPath string) error {
	ref, err := name.ParseReference(ociRef, name.WithDefaultRegistry("ghcr.io"))
	if err != nil {
		return fmt.Errorf("parse oci ref: %w", err)
	}
	img, err := remote.Image(ref, remote.WithAuthFromKeychain(authn.DefaultKeychain))
	if err != nil {
		return fmt.Errorf("pull oci artifact: %w", err)
	}
	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("read layers: %w", err)
	}
	if len(layers) == 0 {
		return fmt.Errorf("oci artifact has no layers")
	}

	rc, err := layers[0].Uncompressed()
	if err != nil {
		return fmt.Errorf("read layer payload: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read layer bytes: %w", err)
	}
	if err := WriteFileAtomic(outPath, raw, 0o644); err != nil {
		return fmt.Errorf("write pulled checkpoint: %w", err)
	}
	return nil
}
