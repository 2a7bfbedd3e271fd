package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeModelNotFound, "no version %s for model %s", "v1.0.0", "momentum")
	suite.NotNil(err)
	suite.Equal(ErrCodeModelNotFound, err.Code)
	suite.Equal("no version v1.0.0 for model momentum", err.Message)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "failed to read feature rows", cause)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal("[200] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal(cause, err.Unwrap())
	suite.True(errors.Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeTaskFailed, "task failed")
	suite.Equal(ErrCodeTaskFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeDataNotFound, "data not found")
	err := Wrap(ErrCodeIndicatorNotFound, "indicator not found", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeIndicatorNotFound, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromStandardError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCodeThroughFmtWrap() {
	inner := New(ErrCodeVersionMismatch, "minor version differs")
	outer := fmt.Errorf("loading model: %w", inner)
	suite.True(HasCode(outer, ErrCodeVersionMismatch))
	suite.False(HasCode(outer, ErrCodeModelNotFound))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := NewInsufficientDataErrorf(50, 12, "AAPL", "need %d bars for AAPL, have %d", 50, 12)
	suite.Equal("need 50 bars for AAPL, have 12", err.Error())
	suite.Equal(50, err.Required)
	suite.Equal(12, err.Actual)
	suite.True(IsInsufficientDataError(err))
	suite.True(IsInsufficientDataError(fmt.Errorf("wrapped: %w", err)))
	suite.False(IsInsufficientDataError(errors.New("other")))
}
