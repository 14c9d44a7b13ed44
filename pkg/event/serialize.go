package event

import (
	"encoding/json"
	"fmt"
)

// New はデータをシリアライズして封筒を生成する。
func New(eventType Type, data any) (*Envelope, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("イベントデータのシリアライズに失敗: %w", err)
	}
	return &Envelope{Type: eventType, Data: jsonData}, nil
}

// Marshal は封筒を生成してフレームのバイト列にする。
func Marshal(eventType Type, data any) ([]byte, error) {
	env, err := New(eventType, data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// DecodeData は封筒のDataフィールドを指定された型にデシリアライズする。
func DecodeData[T any](e *Envelope) (*T, error) {
	var data T
	if len(e.Data) == 0 {
		return &data, nil
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("イベントデータのデシリアライズに失敗: %w", err)
	}
	return &data, nil
}
