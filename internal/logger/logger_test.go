package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	log, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(log)
	suite.NotNil(log.Logger)
}

func (suite *LoggerTestSuite) TestNewDevelopmentLogger() {
	log, err := NewDevelopmentLogger()
	suite.NoError(err)
	suite.NotNil(log)
	suite.NotNil(log.Logger)
}

func (suite *LoggerTestSuite) TestNamed() {
	log, err := NewLogger()
	suite.NoError(err)

	named := log.Named("scoring")
	suite.NotNil(named)
	suite.NotSame(log, named)
}

func (suite *LoggerTestSuite) TestSyncNilLogger() {
	log := &Logger{Logger: nil}
	suite.NoError(log.Sync())
}

func (suite *LoggerTestSuite) TestLogging() {
	log, err := NewLogger()
	suite.NoError(err)

	// These should not panic.
	log.Info("info message", zap.String("asset", "AAPL"))
	log.Debug("debug message")
	log.Warn("warn message")
	log.Error("error message")
}
