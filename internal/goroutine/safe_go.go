package goroutine

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/wastewatch-backend/internal/logger"
)

// SafeGo запускает fn в отдельной горутине. Паника не роняет процесс, а пишется в лог со стеком.
func SafeGo(fn func()) {
	Named("", fn)
}

// Named как SafeGo, но помечает запись о панике именем фоновой задачи.
func Named(task string, fn func()) {
	go func() {
		defer recoverTo(task)
		fn()
	}()
}

func recoverTo(task string) {
	r := recover()
	if r == nil {
		return
	}
	fields := logrus.Fields{
		"panic": r,
		"stack": string(debug.Stack()),
	}
	if task != "" {
		fields["task"] = task
	}
	logger.Log.WithFields(fields).Error("паника в фоновой горутине")
}
