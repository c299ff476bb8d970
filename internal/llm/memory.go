package llm

import "sync"

// MemoryManager 维护每名代理玩家的自由格式工作记忆。
// 记忆内容完全由模型自己组织，引擎不做任何解读。
type MemoryManager struct {
	mu       sync.RWMutex
	memories map[string]string
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		memories: make(map[string]string),
	}
}

func (mm *MemoryManager) Get(playerID string) string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return mm.memories[playerID]
}

func (mm *MemoryManager) Update(playerID, memory string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.memories[playerID] = memory
}
