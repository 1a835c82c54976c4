package ids

import (
	"strconv"
	"sync"
	"time"
)

// 雪花ID布局：41 bit 毫秒时间戳 | 10 bit 节点 | 12 bit 序列
const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = (1 << nodeBits) - 1
	seqMask  = (1 << seqBits) - 1
)

// Generator 按节点生成单调递增的雪花ID
type Generator struct {
	mu       sync.Mutex
	epochMS  int64
	nodeID   int64
	seq      int64
	lastTSMS int64
}

// New 创建生成器，nodeID 超出 0~1023 时退回 1
func New(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Generator{
		epochMS: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		nodeID:  nodeID,
	}
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := time.Now().UnixMilli()
		if now < g.lastTSMS {
			// 时钟回拨，等待
			time.Sleep(time.Duration(g.lastTSMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastTSMS {
			g.seq = (g.seq + 1) & seqMask
			if g.seq == 0 {
				// 序列溢出，等到下一毫秒
				for now <= g.lastTSMS {
					now = time.Now().UnixMilli()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastTSMS = now

		ts := (now - g.epochMS) & ((1 << 41) - 1)
		return (ts << (nodeBits + seqBits)) | (g.nodeID << seqBits) | g.seq
	}
}

// ---------------- 默认实例 ----------------

var (
	defaultGen *Generator
	once       sync.Once
)

func defaultGenerator() *Generator {
	once.Do(func() {
		defaultGen = New(1)
	})
	return defaultGen
}

// Generate 使用默认生成器生成一个新的雪花ID
func Generate() int64 {
	return defaultGenerator().Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID 设置默认生成器的节点号，应在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	g := defaultGenerator()
	g.mu.Lock()
	defer g.mu.Unlock()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	g.nodeID = nodeID
}
