package log

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Until Init is called everything is discarded, so packages can log from tests.
var logger = zap.NewNop().Sugar()
var filenameTrimChars int

func getCallerFileName(withLine bool) string {
	_, filename, line, _ := runtime.Caller(2)
	extension := filepath.Ext(filename)
	if filenameTrimChars < len(filename)-len(extension) {
		filename = filename[filenameTrimChars:]
	}
	if withLine {
		return fmt.Sprint(filename[:len(filename)-len(extension)], "@", line)
	}
	return filename[:len(filename)-len(extension)]
}

func Printf(a string, b ...interface{}) {
	logger.Infof(getCallerFileName(false)+": "+a, b...)
}

func Print(a ...interface{}) {
	logger.Info(append([]interface{}{getCallerFileName(false) + ": "}, a...)...)
}

func Debugf(a string, b ...interface{}) {
	logger.Debugf(getCallerFileName(true)+": "+a, b...)
}

func Debug(a ...interface{}) {
	logger.Debug(append([]interface{}{getCallerFileName(true) + ": "}, a...)...)
}

func Warnf(a string, b ...interface{}) {
	logger.Warnf(getCallerFileName(true)+": "+a, b...)
}

func Errorf(a string, b ...interface{}) {
	logger.Errorf(getCallerFileName(true)+": "+a, b...)
}

func Error(a ...interface{}) {
	logger.Error(append([]interface{}{getCallerFileName(true) + ": "}, a...)...)
}

func Fatalf(a string, b ...interface{}) {
	logger.Fatalf(getCallerFileName(true)+": "+a, b...)
}

func Fatal(a ...interface{}) {
	logger.Fatal(append([]interface{}{getCallerFileName(true) + ": "}, a...)...)
}

func Sync() {
	_ = logger.Sync()
}

// Init sets up console logging, and if logFile is not empty, a rotated log file as well.
func Init(verbose bool, logFile string) {
	// Example: https://stackoverflow.com/questions/50933936/zap-logger-does-not-print-on-console-rather-print-in-the-log-file/50936341
	pe := zap.NewProductionEncoderConfig()
	pe.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(pe)

	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)}
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(pe), zapcore.AddSync(lj), level))
	}
	logger = zap.New(zapcore.NewTee(cores...)).Sugar()

	var callerFilename string
	_, callerFilename, _, _ = runtime.Caller(1)
	filenameTrimChars = len(filepath.Dir(callerFilename)) + 1
}
