package version

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/openquant/momentum-pipeline/pkg/errors"
)

type CompareTestSuite struct {
	suite.Suite
}

func TestCompareSuite(t *testing.T) {
	suite.Run(t, new(CompareTestSuite))
}

func (suite *CompareTestSuite) TestExactMatch() {
	suite.NoError(CheckCompatibility("1.2.0", "1.2.0"))
}

func (suite *CompareTestSuite) TestPatchDiffers() {
	suite.NoError(CheckCompatibility("v1.2.1", "v1.2.0"))
	suite.NoError(CheckCompatibility("1.2.0", "1.2.5"))
}

func (suite *CompareTestSuite) TestMinorDiffers() {
	err := CheckCompatibility("1.3.0", "1.2.0")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeVersionMismatch))
}

func (suite *CompareTestSuite) TestMajorDiffers() {
	err := CheckCompatibility("2.0.0", "1.2.0")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeVersionMismatch))
}

func (suite *CompareTestSuite) TestDevBuildSkipsCheck() {
	suite.NoError(CheckCompatibility("main", "1.2.0"))
	suite.NoError(CheckCompatibility("1.2.0", "main"))
}

func (suite *CompareTestSuite) TestInvalidVersions() {
	err := CheckCompatibility("not-a-version", "1.2.0")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidVersion))

	err = CheckCompatibility("1.2.0", "not-a-version")
	suite.Error(err)
}

func (suite *CompareTestSuite) TestParse() {
	normalized, err := Parse("1.2.3")
	suite.NoError(err)
	suite.Equal("v1.2.3", normalized)

	normalized, err = Parse("v1.2.3")
	suite.NoError(err)
	suite.Equal("v1.2.3", normalized)

	_, err = Parse("bogus")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidVersion))
}
