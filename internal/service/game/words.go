package game

import (
	"errors"
	"math/rand/v2"
)

// 最近用词的历史上限，超出后从头部截断
const WordHistoryLimit = 20

// 内置题库，自定义主题走外部词语生成服务
var Topics = map[string][]string{
	"Places":  {"Hospital", "Space Station", "Submarine", "University", "Movie Studio", "Circus", "Polar Station"},
	"Jobs":    {"Astronaut", "Surgeon", "Chef", "Spy", "Detective", "Pilot", "Diver", "Shadow Agent"},
	"Animals": {"Octopus", "Chameleon", "Falcon", "Panther", "Owl", "Cobra", "Shark"},
}

var ErrEmptyWordPool = errors.New("词库为空，无法开始回合")

// PickWord 从词库中均匀抽取一个词，尽量排除最近用过的；
// 排除后候选为空时回退到完整词库
func PickWord(pool []string, history []string, rng *rand.Rand) (string, error) {
	if len(pool) == 0 {
		return "", ErrEmptyWordPool
	}

	recent := make(map[string]bool, len(history))
	for _, w := range history {
		recent[w] = true
	}

	candidates := make([]string, 0, len(pool))
	for _, w := range pool {
		if !recent[w] {
			candidates = append(candidates, w)
		}
	}

	if len(candidates) == 0 {
		candidates = pool
	}

	return candidates[rng.IntN(len(candidates))], nil
}

// PushHistory 追加选中的词并截断到上限
func PushHistory(history []string, word string) []string {
	history = append(history, word)

	if len(history) > WordHistoryLimit {
		history = history[len(history)-WordHistoryLimit:]
	}

	return history
}
