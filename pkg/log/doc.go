// Package log captures a machine-readable trace of an endpoint's protocol
// activity: every packet on the link, every control message and every state
// change. It is independent of the operational slog output.
//
// An endpoint takes a Logger through endpoint.WithProtocolLogger:
//
//	fl := log.NewRotatingFileLogger(log.RotateConfig{Filename: "/var/log/rf24node/node.rlog"})
//	endpoint.WithProtocolLogger(log.Tee(fl, log.NewSlogAdapter(slog.Default())))
//
// # File format
//
// A log file is a sequence of CBOR records, each an Event wrapped in tag
// RecordTag. Records are self-delimiting, so files can be appended to,
// rotated and concatenated freely. A record cut short by a crash ends the
// stream. Files conventionally use the .rlog extension and are read with
// Reader or the "rf24node log" command.
package log
