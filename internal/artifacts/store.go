package artifacts

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/wraith/internal/common"
	"github.com/ternarybob/wraith/internal/interfaces"
)

// NewStore selects the artifact backend from configuration. Cloud mode
// defaults to S3 when no backend is set explicitly.
func NewStore(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.ArtifactStore, error) {
	backend := config.Artifacts.Backend
	if backend == "" {
		if config.IsCloud() {
			backend = "s3"
		} else {
			backend = "local"
		}
	}

	switch backend {
	case "local":
		return NewLocalStore(config.Artifacts.Local.Dir, logger)
	case "s3":
		return NewS3Store(ctx, &config.Artifacts.S3, logger)
	default:
		return nil, fmt.Errorf("unknown artifact backend: %s", backend)
	}
}
