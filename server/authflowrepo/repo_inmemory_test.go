package authflowrepo_test

import (
	"testing"
	"time"

	perrors "github.com/jrsteele09/go-course-portal/internal/errors"
	"github.com/jrsteele09/go-course-portal/server/authflowrepo"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo_UpsertGetDelete(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()
	created := time.Now()

	err := repo.Upsert("state-1", &authflowrepo.AuthFlowState{
		ClientID:     "browser-1",
		CodeVerifier: "verifier",
		Nonce:        "nonce",
		ReturnURL:    "/courses",
		CreatedAt:    created,
	})
	require.NoError(t, err)

	got, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "browser-1", got.ClientID)
	require.Equal(t, "verifier", got.CodeVerifier)
	require.Equal(t, "/courses", got.ReturnURL)

	got.ReturnURL = "/elsewhere"
	again, err := repo.Get("state-1")
	require.NoError(t, err)
	require.Equal(t, "/courses", again.ReturnURL, "returned value is a copy")

	require.NoError(t, repo.Delete("state-1"))
	_, err = repo.Get("state-1")
	require.ErrorIs(t, err, perrors.ErrInvalidState)
}

func TestInMemoryRepo_Validation(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()

	require.Error(t, repo.Upsert("", &authflowrepo.AuthFlowState{}))
	require.Error(t, repo.Upsert("state", nil))
	_, err := repo.Get("")
	require.Error(t, err)
	require.Error(t, repo.Delete(""))
}

func TestInMemoryRepo_Sweep(t *testing.T) {
	repo := authflowrepo.NewInMemoryRepo()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert("old", &authflowrepo.AuthFlowState{CreatedAt: now.Add(-20 * time.Minute)}))
	require.NoError(t, repo.Upsert("new", &authflowrepo.AuthFlowState{CreatedAt: now.Add(-time.Minute)}))

	require.Equal(t, 1, repo.Sweep(now.Add(-10*time.Minute)))

	_, err := repo.Get("old")
	require.Error(t, err)
	_, err = repo.Get("new")
	require.NoError(t, err)
}
