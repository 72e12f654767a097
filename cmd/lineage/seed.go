package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
)

func seedCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo data: an asset with three versions and a fork",
		Long: `seed migrates the schema, then builds a small history for the owner:

  sunset (standalone) -> v2 -> v3 (HEAD)   family "sunset"
                         v2 -> fork v1      family "sunset (fork)"`,
		Args: cobra.NoArgs,
		RunE: withApp(owner, func(ctx context.Context, a *app, _ []string) error {
			if a.cfg.Environment == "prod" {
				return fmt.Errorf("refusing to seed the prod environment")
			}
			if err := a.store.Migrate(ctx); err != nil {
				return err
			}
			summary, err := seed(ctx, a.allocator, a.ownerID)
			if err != nil {
				return err
			}
			return a.printJSON(summary)
		}),
	}
}

type seedSummary struct {
	FamilyID     string `json:"family_id"`
	HeadID       string `json:"head_id"`
	ForkFamilyID string `json:"fork_family_id"`
	ForkEntityID string `json:"fork_entity_id"`
}

func seed(ctx context.Context, allocator versionSvc.VersionAllocator, ownerID string) (*seedSummary, error) {
	root, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID: ownerID,
		Intent:  models.IntentNew,
		Kind:    "asset",
		Name:    "sunset",
		Content: "s3://demo/sunset.png",
		Metadata: models.Metadata{
			"mime_type": models.StringValue("image/png"),
			"width":     models.IntValue(1024),
			"height":    models.IntValue(768),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}

	message := "warmer colours"
	v2, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID:        ownerID,
		Intent:         models.IntentVersion,
		SourceIDs:      []string{root.Entity.ID},
		Kind:           "asset",
		Name:           "sunset",
		Content:        "s3://demo/sunset-v2.png",
		VersionMessage: &message,
	})
	if err != nil {
		return nil, fmt.Errorf("create v2: %w", err)
	}

	message = "upscaled"
	v3, err := allocator.CreateEntity(ctx, &versionSvc.CreateEntityRequest{
		OwnerID:        ownerID,
		Intent:         models.IntentVersion,
		SourceIDs:      []string{v2.Entity.ID},
		Kind:           "asset",
		Name:           "sunset",
		Content:        "s3://demo/sunset-v3.png",
		Metadata:       models.Metadata{"width": models.IntValue(2048), "height": models.IntValue(1536)},
		VersionMessage: &message,
		AdvanceHead:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create v3: %w", err)
	}

	fork, err := allocator.Fork(ctx, &versionSvc.ForkRequest{
		OwnerID:        ownerID,
		SourceEntityID: v2.Entity.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("fork v2: %w", err)
	}

	return &seedSummary{
		FamilyID:     *v3.Entity.FamilyID,
		HeadID:       v3.Entity.ID,
		ForkFamilyID: fork.Family.ID,
		ForkEntityID: fork.Entity.ID,
	}, nil
}
