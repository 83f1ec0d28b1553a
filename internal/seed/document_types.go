package seed

import (
	"context"
	"fmt"

	"trainingdesk/internal/utils"
	"trainingdesk/pkg/types"

	"github.com/sirupsen/logrus"
)

type DocumentTypeSyncer interface {
	AllDocumentTypes(ctx context.Context) ([]*types.DocumentType, error)
	UpsertDocumentType(ctx context.Context, docType *types.DocumentType) error
	DeleteDocumentType(ctx context.Context, id string) error
}

// DocumentTypes is the source of truth for the document catalog:
// - Inserts types that don't exist
// - Updates types that have changed
// - Deletes types from the DB that aren't in this list
//
// To generate new IDs: `go run ./cmd/trainingdesk nanoid`
func DocumentTypes() []types.DocumentType {
	return []types.DocumentType{
		// students
		{
			ID:          "EVe8EsZ3w4VnnK2nxS63QBtF8SZKmqIE",
			Title:       "Photo ID",
			Category:    types.CategoryStudent,
			IsRequired:  true,
			Description: utils.StringPtr("Passport, driving licence or national ID card"),
		},
		{
			ID:          "uMUoeXlhYU1N7CslXr1l7w2Cq4HI8oCV",
			Title:       "Enrolment Form",
			Category:    types.CategoryStudent,
			IsRequired:  true,
			Description: utils.StringPtr("Signed enrolment form for the booked course"),
		},
		{
			ID:          "CrorPayMnV9782RlBhCiBYD0VCT2P0jE",
			Title:       "Medical Declaration",
			Category:    types.CategoryMedical,
			IsRequired:  true,
			Description: utils.StringPtr("Self declaration of fitness to take part in practical sessions"),
		},
		{
			ID:          "ejAMgtMx6cAjpFIIaSv40ugFk2nVFtPn",
			Title:       "GP Letter",
			Category:    types.CategoryMedical,
			IsRequired:  false,
			Description: utils.StringPtr("Only when the declaration lists a condition"),
		},
		{
			ID:          "7jx9lSHlNBrcil1hw8ALpQc8yborfb8u",
			Title:       "Invoice",
			Category:    types.CategoryOffice,
			IsRequired:  false,
			Description: utils.StringPtr("Issued by the office after booking"),
		},
		{
			ID:          "zHYJy2GdbpbjeBlQ1HEDMHHRk0I5MltT",
			Title:       "Attendance Sheet",
			Category:    types.CategoryOffice,
			IsRequired:  false,
			Description: utils.StringPtr("Scanned sign in sheet from the event"),
		},
		{
			ID:          "tlwvDmU9O0W0VASTfeMdwoRxnIETswFL",
			Title:       "Completion Certificate",
			Category:    types.CategoryCertificate,
			IsRequired:  false,
			Description: utils.StringPtr("Certificate issued on passing the course"),
		},
		// instructors
		{
			ID:          "bRnadRBADw6iSa9FFtZ4RI63VEuJH5SK",
			Title:       "Teaching Qualification",
			Category:    types.CategoryInstructor,
			IsRequired:  true,
			Description: utils.StringPtr("Current qualification to deliver the course"),
		},
		{
			ID:          "p2Q13a9BWp2ER8sbtBjdULpFfkS8iixv",
			Title:       "Background Check",
			Category:    types.CategoryInstructor,
			IsRequired:  true,
			Description: utils.StringPtr("Background check issued within the last three years"),
		},
		{
			ID:          "rVI2owtUOqDnDgIjpmb5hBCqzTvkCqiW",
			Title:       "Insurance Certificate",
			Category:    types.CategoryCertificate,
			IsRequired:  true,
			Description: utils.StringPtr("Professional indemnity insurance"),
		},
		{
			ID:          "DzAeQ8PR2e2zdPIdc4SlxMGvi5FiWGoZ",
			Title:       "CPD Log",
			Category:    types.CategoryInstructor,
			IsRequired:  false,
			Description: utils.StringPtr("Continuing professional development for the year"),
		},
	}
}

// SeedDocumentTypes syncs the database with DocumentTypes.
func SeedDocumentTypes(ctx context.Context, repo DocumentTypeSyncer, logger logrus.FieldLogger) error {
	docTypes := DocumentTypes()

	logger.WithField("count", len(docTypes)).Info("starting document type sync")

	seedIDs := make(map[string]bool, len(docTypes))
	for _, docType := range docTypes {
		seedIDs[docType.ID] = true
	}

	existing, err := repo.AllDocumentTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch existing document types: %w", err)
	}

	deleted := 0
	for _, docType := range existing {
		if seedIDs[docType.ID] {
			continue
		}
		logger.WithFields(logrus.Fields{
			"document_type_id": docType.ID,
			"title":            docType.Title,
		}).Info("deleting document type")
		if err := repo.DeleteDocumentType(ctx, docType.ID); err != nil {
			return fmt.Errorf("failed to delete document type %s: %w", docType.ID, err)
		}
		deleted++
	}

	upserted := 0
	for _, docType := range docTypes {
		if err := repo.UpsertDocumentType(ctx, &docType); err != nil {
			return fmt.Errorf("failed to upsert document type %s: %w", docType.Title, err)
		}
		upserted++
	}

	logger.WithFields(logrus.Fields{
		"upserted": upserted,
		"deleted":  deleted,
	}).Info("document type sync complete")

	return nil
}
