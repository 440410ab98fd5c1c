package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "contactlink/pkg/domain-errors"
)

type SecretsSuite struct {
	suite.Suite
}

func TestSecretsSuite(t *testing.T) {
	suite.Run(t, new(SecretsSuite))
}

func (s *SecretsSuite) TestGenerate() {
	first, err := Generate()
	s.Require().NoError(err)
	s.NotEmpty(first)

	second, err := Generate()
	s.Require().NoError(err)
	s.NotEqual(first, second, "secrets must be unique")
}

func (s *SecretsSuite) TestHashAndVerify() {
	secret, err := Generate()
	s.Require().NoError(err)

	hash, err := Hash(secret)
	s.Require().NoError(err)
	s.NotEqual(secret, hash)

	s.NoError(Verify(secret, hash))

	err = Verify("wrong-secret", hash)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *SecretsSuite) TestHashRejectsInvalidInput() {
	_, err := Hash("")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	// bcrypt caps input at 72 bytes.
	_, err = Hash(strings.Repeat("x", 100))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
