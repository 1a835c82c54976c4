package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ===== 时间格式 =====
//
// 消息体内时间一律按东八区格式化为 "2006-01-02 15:04:05"，
// 反序列化时同样按东八区解释，跨端口径保持一致。

const timeLayout = "2006-01-02 15:04:05"

// East8 东八区
var East8 = time.FixedZone("UTC+8", 8*3600)

// Timestamp 消息体内使用的时间类型
type Timestamp struct {
	time.Time
}

func Now() Timestamp {
	return Timestamp{time.Now().In(East8)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.In(East8).Format(timeLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(timeLayout, s, East8)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ===== 消息负载 =====
//
// 负载以 JSON 字节原样写入消息库，mid 由消息库分配、不进负载。
// target/detail 是带标签的联合体：恰好一个分支非空。

// ChatMessagePayload 一条聊天消息的负载
type ChatMessagePayload struct {
	FromUID   int64         `json:"from_uid"`   // 发送者ID
	CreatedAt Timestamp     `json:"created_at"` // 消息创建时间
	Target    MessageTarget `json:"target"`     // 投递目标
	Detail    MessageDetail `json:"detail"`     // 消息明细
}

// MessageTarget 投递目标，单聊或群聊二选一
type MessageTarget struct {
	User  *MessageTargetUser  `json:"User,omitempty"`
	Group *MessageTargetGroup `json:"Group,omitempty"`
}

type MessageTargetUser struct {
	UID int64 `json:"uid"`
}

type MessageTargetGroup struct {
	GID int64 `json:"gid"`
}

// Validate 目标必须且仅能指定一个分支
func (t MessageTarget) Validate() error {
	if (t.User == nil) == (t.Group == nil) {
		return errors.New("target must be exactly one of User or Group")
	}
	return nil
}

// String 用于日志与调试输出
func (t MessageTarget) String() string {
	switch {
	case t.User != nil:
		return fmt.Sprintf("MessageTargetUser:%d", t.User.UID)
	case t.Group != nil:
		return fmt.Sprintf("MessageTargetGroup:%d", t.Group.GID)
	default:
		return "MessageTarget:empty"
	}
}

// MessageDetail 消息明细，普通消息或回复消息二选一
type MessageDetail struct {
	Normal *MessageNormal `json:"Normal,omitempty"`
	Replay *MessageReplay `json:"Replay,omitempty"`
}

// Content 取出正文，两个分支结构一致
func (d MessageDetail) Content() string {
	switch {
	case d.Normal != nil:
		return d.Normal.Content.Content
	case d.Replay != nil:
		return d.Replay.Content.Content
	default:
		return ""
	}
}

type MessageNormal struct {
	Content MessageContent `json:"content"`
}

// MessageReplay 对 mid 指向消息的回复
type MessageReplay struct {
	Mid     int64          `json:"mid"`
	Content MessageContent `json:"content"`
}

type MessageContent struct {
	Content string `json:"content"` // 正文
}

// ===== 出口结构 =====

// ChatMessage 带 mid 的完整消息，历史查询与事件推送共用
type ChatMessage struct {
	Mid     int64              `json:"mid"`
	Payload ChatMessagePayload `json:"payload"`
}

func NewChatMessage(mid int64, payload ChatMessagePayload) ChatMessage {
	return ChatMessage{Mid: mid, Payload: payload}
}

// BuildPayload 由正文构造普通消息负载
func BuildPayload(fromUID int64, target MessageTarget, msg string) ChatMessagePayload {
	return ChatMessagePayload{
		FromUID:   fromUID,
		CreatedAt: Now(),
		Target:    target,
		Detail: MessageDetail{
			Normal: &MessageNormal{Content: MessageContent{Content: msg}},
		},
	}
}

// EncodePayload 序列化负载，写入消息库前调用
func EncodePayload(p ChatMessagePayload) ([]byte, error) {
	return json.Marshal(p)
}

// DecodePayload 反序列化负载，坏记录返回错误由调用方跳过
func DecodePayload(data []byte) (ChatMessagePayload, error) {
	var p ChatMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ChatMessagePayload{}, err
	}
	return p, nil
}
