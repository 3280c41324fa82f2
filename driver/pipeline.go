package driver

import (
	"strings"

	"github.com/pkg/errors"
)

// PacketPipeline selects the compute backend that decodes depth packets. Drivers fall back to
// CPU when the requested backend is unavailable.
type PacketPipeline int

// Packet pipelines.
const (
	CPUPipeline PacketPipeline = iota
	OpenCLPipeline
	OpenCLKDEPipeline
	OpenGLPipeline
)

// PacketPipelines lists every pipeline.
var PacketPipelines = []PacketPipeline{CPUPipeline, OpenCLPipeline, OpenCLKDEPipeline, OpenGLPipeline}

func (p PacketPipeline) String() string {
	switch p {
	case CPUPipeline:
		return "cpu"
	case OpenCLPipeline:
		return "opencl"
	case OpenCLKDEPipeline:
		return "openclkde"
	case OpenGLPipeline:
		return "opengl"
	default:
		return "unknown"
	}
}

// ParsePacketPipeline parses a pipeline name, case-insensitively.
func ParsePacketPipeline(s string) (PacketPipeline, error) {
	for _, p := range PacketPipelines {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return CPUPipeline, errors.Errorf("unknown packet pipeline %q", s)
}
