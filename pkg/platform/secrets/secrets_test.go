package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"

	dErrors "canon/pkg/domainerrors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.NoError(t, Verify("correct horse battery staple", hash))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	hash, err := Hash("the-real-token")
	require.NoError(t, err)

	err = Verify("an-impostor", hash)
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("")
	require.Error(t, err)
	require.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestHashesAreSalted(t *testing.T) {
	first, err := Hash("same-secret")
	require.NoError(t, err)
	second, err := Hash("same-secret")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.NoError(t, Verify("same-secret", first))
	require.NoError(t, Verify("same-secret", second))
}
