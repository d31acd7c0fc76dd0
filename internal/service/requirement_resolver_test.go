package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func birthDateForAge(now time.Time, years int) *time.Time {
	d := now.AddDate(-years, 0, -1)
	return &d
}

func TestRequiredKindsByTrack(t *testing.T) {
	resolver := NewRequirementResolver([]string{"CC"})

	for _, docType := range models.DocumentTypes() {
		for _, adult := range []bool{true, false} {
			kinds := resolver.Required(docType, adult)
			if docType == models.DocumentTypeCC && adult {
				assert.Len(t, kinds, 5, "%s adult=%v", docType, adult)
				assert.NotContains(t, kinds, models.DocumentKindBirthCertificate)
				assert.NotContains(t, kinds, models.DocumentKindGuardianID)
				assert.NotContains(t, kinds, models.DocumentKindDataConsent)
				continue
			}
			assert.Len(t, kinds, 8, "%s adult=%v", docType, adult)
		}
	}
}

func TestRequiredReturnsIndependentSlices(t *testing.T) {
	resolver := NewRequirementResolver(nil)
	first := resolver.Required(models.DocumentTypeCC, true)
	first[0] = "MUTATED"
	second := resolver.Required(models.DocumentTypeCC, true)
	assert.Equal(t, models.DocumentKindIdentity, second[0])
}

func TestRequiredForUsesCurrentAge(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	resolver := NewRequirementResolver([]string{"cc"})
	resolver.now = func() time.Time { return now }

	adult := &models.StudentProfile{DocumentType: models.DocumentTypeCC, BirthDate: birthDateForAge(now, 19)}
	assert.Len(t, resolver.RequiredFor(adult), 5)

	almost := time.Date(2008, 3, 11, 0, 0, 0, 0, time.UTC)
	minor := &models.StudentProfile{DocumentType: models.DocumentTypeCC, BirthDate: &almost}
	assert.Len(t, resolver.RequiredFor(minor), 8)

	unknown := &models.StudentProfile{DocumentType: models.DocumentTypeCC}
	assert.Len(t, resolver.RequiredFor(unknown), 8)
}

func TestEvaluateRequiresKindCoverage(t *testing.T) {
	resolver := NewRequirementResolver(nil)
	required := resolver.Required(models.DocumentTypeCC, true)

	docs := make([]models.Document, 0, len(required))
	for _, kind := range required[:4] {
		docs = append(docs, models.Document{Kind: kind, Approved: boolPtr(true)})
	}
	// enough documents by count, but one required kind is absent
	docs = append(docs, models.Document{Kind: models.DocumentKindBirthCertificate, Approved: boolPtr(true)})

	status := resolver.Evaluate(required, docs)
	require.False(t, status.Satisfied())
	assert.Equal(t, []models.DocumentKind{models.DocumentKindApprenticeCommitment}, status.Missing)
}

func TestEvaluateFlagsPendingAndRejected(t *testing.T) {
	resolver := NewRequirementResolver(nil)
	required := resolver.Required(models.DocumentTypeCC, true)

	docs := make([]models.Document, 0, len(required))
	for _, kind := range required {
		docs = append(docs, models.Document{Kind: kind, Approved: boolPtr(true)})
	}
	status := resolver.Evaluate(required, docs)
	assert.True(t, status.Satisfied())

	docs[1].Approved = nil
	docs[2].Approved = boolPtr(false)
	status = resolver.Evaluate(required, docs)
	assert.True(t, status.AllPresent())
	assert.False(t, status.Satisfied())
	assert.ElementsMatch(t, []models.DocumentKind{required[1], required[2]}, status.Unapproved)
}

func TestEvaluateIgnoresSupersededVersions(t *testing.T) {
	resolver := NewRequirementResolver(nil)
	successor := "doc-2"
	docs := []models.Document{{Kind: models.DocumentKindIdentity, Approved: boolPtr(true), SupersededBy: &successor}}

	status := resolver.Evaluate([]models.DocumentKind{models.DocumentKindIdentity}, docs)
	assert.Equal(t, []models.DocumentKind{models.DocumentKindIdentity}, status.Missing)
}
