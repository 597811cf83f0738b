package logx

import "fmt"

// Recording is a test double that captures every message it receives,
// following the teacher's core/testutils fake-logger convention.
type Recording struct {
	Messages []string
	level    Level
}

// NewRecording creates a Recording logger at the given minimum level.
func NewRecording(level Level) *Recording { return &Recording{level: level} }

func (r *Recording) SetLevel(level Level) { r.level = level }

func (r *Recording) record(level Level, message string) {
	if level < r.level {
		return
	}
	r.Messages = append(r.Messages, fmt.Sprintf("[%s] %s", level, message))
}

func (r *Recording) Debug(message string) { r.record(DEBUG, message) }
func (r *Recording) Info(message string)  { r.record(INFO, message) }
func (r *Recording) Warn(message string)  { r.record(WARN, message) }
func (r *Recording) Error(message string) { r.record(ERROR, message) }

func (r *Recording) Debugf(format string, v ...interface{}) { r.record(DEBUG, fmt.Sprintf(format, v...)) }
func (r *Recording) Infof(format string, v ...interface{})  { r.record(INFO, fmt.Sprintf(format, v...)) }
func (r *Recording) Warnf(format string, v ...interface{})  { r.record(WARN, fmt.Sprintf(format, v...)) }
func (r *Recording) Errorf(format string, v ...interface{}) {
	r.record(ERROR, fmt.Sprintf(format, v...))
}

// WithFields records fields inline with the message rather than tracking
// them separately, since tests only assert on Messages.
func (r *Recording) WithFields(fields Fields) Logger {
	return &fieldRecording{r: r, fields: fields}
}

type fieldRecording struct {
	r      *Recording
	fields Fields
}

func (f *fieldRecording) SetLevel(level Level) { f.r.SetLevel(level) }

func (f *fieldRecording) withFields(message string) string {
	return fmt.Sprintf("%s %v", message, map[string]interface{}(f.fields))
}

func (f *fieldRecording) Debug(message string) { f.r.Debug(f.withFields(message)) }
func (f *fieldRecording) Info(message string)  { f.r.Info(f.withFields(message)) }
func (f *fieldRecording) Warn(message string)  { f.r.Warn(f.withFields(message)) }
func (f *fieldRecording) Error(message string) { f.r.Error(f.withFields(message)) }

func (f *fieldRecording) Debugf(format string, v ...interface{}) {
	f.r.Debug(f.withFields(fmt.Sprintf(format, v...)))
}
func (f *fieldRecording) Infof(format string, v ...interface{}) {
	f.r.Info(f.withFields(fmt.Sprintf(format, v...)))
}
func (f *fieldRecording) Warnf(format string, v ...interface{}) {
	f.r.Warn(f.withFields(fmt.Sprintf(format, v...)))
}
func (f *fieldRecording) Errorf(format string, v ...interface{}) {
	f.r.Error(f.withFields(fmt.Sprintf(format, v...)))
}
