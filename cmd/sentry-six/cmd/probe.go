package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ChadR23/sentry-six/internal/ffmpeg"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe FFmpeg encoder capabilities",
	Long: `Locate the FFmpeg binary and probe its encoders, preferring hardware
(NVENC, VideoToolbox, QSV, AMF, VAAPI) with test encodes and falling
back to software x264/x265.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().Bool("json", false, "Output as JSON")
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	binary, err := ffmpeg.FindBinary(cfg.FFmpeg.BinaryPath)
	if err != nil {
		return err
	}

	prober := ffmpeg.NewProber(binary, cfg.FFmpeg.ProbeQueryTimeout, cfg.FFmpeg.ProbeEncodeTimeout, slog.Default())
	caps := prober.Probe(cmd.Context())

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Binary       string               `json:"binary"`
			Capabilities *ffmpeg.Capabilities `json:"capabilities"`
		}{binary, caps})
	}

	fmt.Printf("Binary:        %s\n", binary)
	fmt.Printf("H.264 encoder: %s\n", caps.H264Encoder)
	fmt.Printf("HEVC encoder:  %s\n", caps.HEVCEncoder)
	if caps.HWAccelerated {
		if caps.GPUName != "" {
			fmt.Printf("Hardware:      yes (%s)\n", caps.GPUName)
		} else {
			fmt.Println("Hardware:      yes")
		}
	} else {
		fmt.Println("Hardware:      no (software encoding)")
	}
	return nil
}
