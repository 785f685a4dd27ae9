package log

import "log/slog"

func SessionID[T ~string](id T) slog.Attr {
	return slog.String("session_id", string(id))
}

func NodeType[T ~string](id T) slog.Attr {
	return slog.String("node_type", string(id))
}

func Phase[T ~string](phase T) slog.Attr {
	return slog.String("phase", string(phase))
}

func QuestionID[T ~string](id T) slog.Attr {
	return slog.String("question_id", string(id))
}

func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
