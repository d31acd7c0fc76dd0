package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/articulacion-api/internal/models"
	appErrors "github.com/noah-isme/articulacion-api/pkg/errors"
)

func TestUploadValidatesFile(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	ctx := context.Background()

	cases := map[string]UploadFile{
		"extension":  {Name: "id.exe", Size: 3, Reader: strings.NewReader("abc")},
		"empty":      {Name: "id.pdf", Size: 0, Reader: strings.NewReader("")},
		"too large":  {Name: "id.pdf", Size: 4096, Reader: bytes.NewReader(make([]byte, 4096))},
		"lying size": {Name: "id.pdf", Size: 10, Reader: bytes.NewReader(make([]byte, 2048))},
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, file)
			requireCode(t, err, appErrors.ErrValidation)
		})
	}

	_, err := fx.documents.Upload(ctx, student, "PASSPORT", pdfUpload("p.pdf"))
	requireCode(t, err, appErrors.ErrValidation)
	_, err = fx.documents.Upload(ctx, teacherActor, models.DocumentKindIdentity, pdfUpload("id.pdf"))
	requireCode(t, err, appErrors.ErrForbidden)
}

func TestUploadSupersedesActiveVersion(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	ctx := context.Background()

	first, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, pdfUpload("front.pdf"))
	require.NoError(t, err)
	second, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, pdfUpload("both-sides.PDF"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "pdf", second.Extension)
	assert.True(t, fx.blobs.Exists(second.FilePath))

	versions, err := fx.documents.Versions(ctx, student, first.EnrollmentID, models.DocumentKindIdentity)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, models.DocumentStatusReplaced, versions[0].Status())
	assert.Equal(t, models.DocumentStatusPending, versions[1].Status())

	active, err := memoryDocuments{fx.db}.ListActive(ctx, first.EnrollmentID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestReplaceRules(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	ctx := context.Background()
	docs := fx.uploadKinds(t, student, []models.DocumentKind{models.DocumentKindIdentity, models.DocumentKindDataConsent})
	identity := docs[models.DocumentKindIdentity]

	_, err := fx.documents.Review(ctx, teacherActor, identity.ID, false, "")
	requireCode(t, err, appErrors.ErrValidation)

	_, err = fx.documents.Review(ctx, teacherActor, identity.ID, false, "illegible")
	require.NoError(t, err)

	replacement, err := fx.documents.Replace(ctx, student, identity.ID, pdfUpload("id-v2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, replacement.Version)
	assert.Nil(t, replacement.Approved)

	_, err = fx.documents.Replace(ctx, student, identity.ID, pdfUpload("id-v3.pdf"))
	requireCode(t, err, appErrors.ErrInvalidTransition)

	_, err = fx.documents.Review(ctx, teacherActor, identity.ID, true, "")
	requireCode(t, err, appErrors.ErrInvalidTransition)

	consent := docs[models.DocumentKindDataConsent]
	_, err = fx.documents.Review(ctx, teacherActor, consent.ID, true, "")
	require.NoError(t, err)
	_, err = fx.documents.Replace(ctx, student, consent.ID, pdfUpload("consent-v2.pdf"))
	requireCode(t, err, appErrors.ErrInvalidTransition)

	_, err = fx.documents.Replace(ctx, student, "doc-missing", pdfUpload("x.pdf"))
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestReviewRequiresStaff(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	docs := fx.uploadKinds(t, student, []models.DocumentKind{models.DocumentKindIdentity})

	_, err := fx.documents.Review(context.Background(), student, docs[models.DocumentKindIdentity].ID, true, "")
	requireCode(t, err, appErrors.ErrForbidden)

	_, err = fx.documents.Review(context.Background(), teacherActor, "doc-missing", true, "")
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestApproveAllPendingPromotesOnce(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	docs := fx.uploadKinds(t, student, adultTrackKinds)

	_, err := fx.documents.Review(context.Background(), teacherActor, docs[models.DocumentKindIdentity].ID, true, "")
	require.NoError(t, err)

	resp, err := fx.documents.ApproveAllPending(context.Background(), adminActor, "enr-s1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, resp.Approved)
	assert.True(t, resp.Promoted)
	assert.Equal(t, models.EnrollmentStatePreEnrolled, resp.EnrollmentState)

	promoted := fx.enrollment(t, "enr-s1")
	stamp := promoted.StampOf(models.TierAdmin)
	require.NotNil(t, stamp)
	assert.Equal(t, adminActor.UserID, stamp.ValidatorID)

	again, err := fx.documents.ApproveAllPending(context.Background(), adminActor, "enr-s1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, again.Approved)
	assert.False(t, again.Promoted)
}

func TestPurgeReactivatesPreviousVersion(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	ctx := context.Background()

	first, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, pdfUpload("v1.pdf"))
	require.NoError(t, err)
	second, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, pdfUpload("v2.pdf"))
	require.NoError(t, err)

	err = fx.documents.Purge(ctx, teacherActor, second.ID)
	requireCode(t, err, appErrors.ErrForbidden)

	require.NoError(t, fx.documents.Purge(ctx, adminActor, second.ID))
	assert.False(t, fx.blobs.Exists(second.FilePath))

	active, err := memoryDocuments{fx.db}.ListActive(ctx, first.EnrollmentID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, models.EnrollmentStateDraft, fx.enrollment(t, first.EnrollmentID).State)

	err = fx.documents.Purge(ctx, adminActor, second.ID)
	requireCode(t, err, appErrors.ErrNotFound)
}

func TestDownloadURLRoundTrip(t *testing.T) {
	fx := newWorkflowFixture(t)
	student := fx.addStudent("s1", models.DocumentTypeCC, 19)
	ctx := context.Background()
	doc, err := fx.documents.Upload(ctx, student, models.DocumentKindIdentity, pdfUpload("cedula.pdf"))
	require.NoError(t, err)

	link, err := fx.documents.DownloadURL(ctx, teacherActor, doc.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/files/"))

	download, err := fx.documents.OpenByToken(ctx, strings.TrimPrefix(link.URL, "/api/v1/files/"))
	require.NoError(t, err)
	defer download.File.Close()
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	assert.Equal(t, "cedula.pdf", download.FileName)

	_, err = fx.documents.OpenByToken(ctx, "garbage")
	requireCode(t, err, appErrors.ErrForbidden)

	outsider := models.Actor{UserID: "user-s2", Role: models.RoleStudent, Scope: models.AccessScope{StudentID: "s2"}}
	_, err = fx.documents.DownloadURL(ctx, outsider, doc.ID)
	requireCode(t, err, appErrors.ErrForbidden)
}
