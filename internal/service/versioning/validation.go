package versioning

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Sakenfor/pixsim7-sub004/internal/config"
	"github.com/Sakenfor/pixsim7-sub004/internal/domain"
	models "github.com/Sakenfor/pixsim7-sub004/internal/domain/models/versioning"
	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
)

// checkOwner rejects access to a resource owned by someone else
func checkOwner(resource, id, ownerID, callerID string) error {
	if ownerID != callerID {
		return &domain.ForbiddenError{Message: fmt.Sprintf("%s %s belongs to another owner", resource, id)}
	}
	return nil
}

// trimmed returns a trimmed copy of s, or nil
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func validateFamilyFields(name, description *string) error {
	return validation.Errors{
		"name": validation.Validate(name,
			validation.NilOrNotEmpty,
			validation.Length(1, config.MaxFamilyNameLength),
		),
		"description": validation.Validate(description,
			validation.Length(0, config.MaxFamilyDescriptionLength),
		),
	}.Filter()
}

// validateIntent checks the intent/source combination. A "version" intent
// needs exactly one source. Sources sent with "new" are ignored.
func validateIntent(intent models.Intent, sourceIDs []string) error {
	invalid := func(reason string) error {
		return &domain.InvalidIntentError{Intent: string(intent), SourceCount: len(sourceIDs), Reason: reason}
	}

	switch intent {
	case models.IntentNew:
	case models.IntentVersion:
		if len(sourceIDs) != 1 {
			return invalid(`"version" requires exactly one source entity`)
		}
		if strings.TrimSpace(sourceIDs[0]) == "" {
			return invalid("source entity id is empty")
		}
	default:
		return invalid(fmt.Sprintf("intent must be %q or %q", models.IntentNew, models.IntentVersion))
	}
	return nil
}

func validateCreateEntity(req *versionSvc.CreateEntityRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.Kind, validation.Required),
		validation.Field(&req.Name, validation.Length(0, config.MaxEntityNameLength)),
		validation.Field(&req.VersionMessage, validation.Length(0, config.MaxVersionMessageLength)),
	)
}

func validateFork(req *versionSvc.ForkRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required),
		validation.Field(&req.SourceEntityID, validation.Required),
		validation.Field(&req.NewName, validation.NilOrNotEmpty, validation.Length(1, config.MaxFamilyNameLength)),
	)
}
