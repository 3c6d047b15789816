package containeradapter

import (
	"context"
	"fmt"

	"agora/contexts/voting-core/ballot-service/domain/entities"
	containerbuilder "agora/contexts/voting-core/container-builder"
)

// FinalBuilder adapts the archive builder to the final-container port. Each
// per-user container goes in as one entry named after the voter hash so
// auditors can match entries to tally rows.
type FinalBuilder struct {
	Builder containerbuilder.Builder
}

func (f FinalBuilder) BuildFinal(_ context.Context, _ string, containers []entities.UserContainer) ([]byte, error) {
	documents := make([]containerbuilder.Document, 0, len(containers))
	for i, container := range containers {
		name := container.UserHash
		if name == "" {
			name = container.UserID
		}
		documents = append(documents, containerbuilder.Document{
			Name:      fmt.Sprintf("ballot-%03d-%s.asice", i+1, name),
			MediaType: containerbuilder.MimeType,
			Content:   container.Content,
		})
	}
	return f.Builder.BuildFinal(documents)
}
