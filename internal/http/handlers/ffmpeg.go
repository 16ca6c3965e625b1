package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
)

// CapabilityProber exposes encoder probing. The first call performs the
// probe; later calls return the cached result.
type CapabilityProber interface {
	Probe(ctx context.Context) *ffmpeg.Capabilities
}

// FFmpegHandler serves the encoder capability endpoint.
type FFmpegHandler struct {
	binary string
	prober CapabilityProber
}

// NewFFmpegHandler creates an ffmpeg handler.
func NewFFmpegHandler(binary string, prober CapabilityProber) *FFmpegHandler {
	return &FFmpegHandler{binary: binary, prober: prober}
}

// CapabilitiesOutput reports the probed encoder capabilities.
type CapabilitiesOutput struct {
	Body struct {
		Binary       string               `json:"binary"`
		Capabilities *ffmpeg.Capabilities `json:"capabilities"`
	}
}

// Register registers the ffmpeg route with the API.
func (h *FFmpegHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getFFmpegCapabilities",
		Method:      "GET",
		Path:        "/api/v1/ffmpeg",
		Summary:     "Get probed encoder capabilities",
		Tags:        []string{"System"},
	}, h.GetCapabilities)
}

// GetCapabilities runs (or returns the cached) encoder probe.
func (h *FFmpegHandler) GetCapabilities(ctx context.Context, _ *struct{}) (*CapabilitiesOutput, error) {
	out := &CapabilitiesOutput{}
	out.Body.Binary = h.binary
	out.Body.Capabilities = h.prober.Probe(ctx)
	return out, nil
}
