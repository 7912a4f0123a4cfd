// internal/logging/core.go
package logging

import (
	"io"

	"go.uber.org/zap/zapcore"
)

// pipelineCore is a zapcore.Core that runs entries through a pipeline and
// writes the rendered output to a WriteSyncer.
type pipelineCore struct {
	zapcore.LevelEnabler
	pipeline Stage
	out      zapcore.WriteSyncer
	fields   []zapcore.Field
}

func newPipelineCore(pipeline Stage, out zapcore.WriteSyncer, enab zapcore.LevelEnabler) *pipelineCore {
	return &pipelineCore{
		LevelEnabler: enab,
		pipeline:     pipeline,
		out:          out,
	}
}

func (c *pipelineCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = make([]zapcore.Field, 0, len(c.fields)+len(fields))
	clone.fields = append(clone.fields, c.fields...)
	clone.fields = append(clone.fields, fields...)
	return &clone
}

func (c *pipelineCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *pipelineCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := fields
	if len(c.fields) > 0 {
		all = make([]zapcore.Field, 0, len(c.fields)+len(fields))
		all = append(all, c.fields...)
		all = append(all, fields...)
	}

	e := entryFromZap(ent, all)
	if c.pipeline != nil {
		e = c.pipeline(e)
	}
	if e == nil {
		return nil
	}
	if e.Output == "" {
		e = jsonFormat(e)
	}

	if _, err := c.out.Write([]byte(e.Output + "\n")); err != nil {
		return err
	}
	if ent.Level > zapcore.ErrorLevel {
		return c.out.Sync()
	}
	return nil
}

func (c *pipelineCore) Sync() error {
	return c.out.Sync()
}

// closingCore is a pipelineCore whose writer owns a connection, file or
// goroutine. The factory collects it so the logger can release it.
type closingCore struct {
	*pipelineCore
	closer io.Closer
}

func newClosingCore(pipeline Stage, out zapcore.WriteSyncer, closer io.Closer, enab zapcore.LevelEnabler) *closingCore {
	return &closingCore{pipelineCore: newPipelineCore(pipeline, out, enab), closer: closer}
}

func (c *closingCore) Close() error {
	return c.closer.Close()
}

// levelFilterCore restricts an inner core to the levels enab allows.
type levelFilterCore struct {
	zapcore.Core
	enab zapcore.LevelEnabler
}

func withLevelFilter(core zapcore.Core, enab zapcore.LevelEnabler) zapcore.Core {
	return &levelFilterCore{Core: core, enab: enab}
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return c.enab.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.enab.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core: c.Core.With(fields),
		enab: c.enab,
	}
}
