package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/coursecrm/internal/model"
)

// HandlerFunc は1件のイベントを処理する関数。payloadは受信したJSONそのもの。
type HandlerFunc func(ctx context.Context, payload []byte) error

// Dispatcher はevent_typeごとにハンドラーを振り分ける。
// 起動時に登録を済ませ、以降は読み取り専用で使う。
type Dispatcher struct {
	handlers map[model.EventType]HandlerFunc
}

// NewDispatcher は空のDispatcherを生成する。
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[model.EventType]HandlerFunc)}
}

// Register はイベント種別にハンドラーを登録する。
func (d *Dispatcher) Register(eventType model.EventType, h HandlerFunc) {
	d.handlers[eventType] = h
}

// Lookup はイベント種別に対応するハンドラーを返す。
func (d *Dispatcher) Lookup(eventType model.EventType) (HandlerFunc, bool) {
	h, ok := d.handlers[eventType]
	return h, ok
}

// Typed はpayloadをTにデコードしてからfnを呼ぶHandlerFuncを返す。
func Typed[T any](fn func(ctx context.Context, ev T) error) HandlerFunc {
	return func(ctx context.Context, payload []byte) error {
		var ev T
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("failed to decode %T: %w", ev, err)
		}
		return fn(ctx, ev)
	}
}
