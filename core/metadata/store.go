package metadata

import (
	"sort"
	"strings"
)

// Store 规范化元数据的容器。键是规范键，值是字符串列表，
// 以支持"艺术家"这类可能有多个值的元数据项。
// 每次解析/生成都会新建一个 Store，不做任何持久化。
type Store struct {
	data map[CanonicalKey][]string
}

// NewStore 创建一个空的元数据容器。
func NewStore() *Store {
	return &Store{data: make(map[CanonicalKey][]string)}
}

// Add 添加一个键值对。原始键会被规范化，值会先去掉首尾空白，
// 去掉后为空的值直接忽略。去重前允许重复值存在。
func (s *Store) Add(rawKey, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}
	key, ok := ResolveKey(rawKey)
	if !ok {
		return
	}
	s.data[key] = append(s.data[key], trimmed)
}

// LoadRaw 批量导入解析器产出的原始元数据表。
func (s *Store) LoadRaw(raw map[string][]string) {
	for key, values := range raw {
		for _, value := range values {
			s.Add(key, value)
		}
	}
}

// GetSingle 返回键的第一个值。键不存在时返回空串和 false，
// 这是正常状态而非错误，验证器和生成器都依赖这种查询语义。
func (s *Store) GetSingle(key CanonicalKey) (string, bool) {
	values, ok := s.data[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// GetMultiple 返回键对应的全部值，不存在时返回 nil。
func (s *Store) GetMultiple(key CanonicalKey) []string {
	return s.data[key]
}

// Has 判断键是否存在且至少有一个值。
func (s *Store) Has(key CanonicalKey) bool {
	return len(s.data[key]) > 0
}

// Deduplicate 清理整个容器：再次 trim 所有值并丢弃空值，排序去重，
// 值列表变空的键整个移除。多次调用结果相同（幂等）。
func (s *Store) Deduplicate() {
	for key, values := range s.data {
		cleaned := values[:0]
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v != "" {
				cleaned = append(cleaned, v)
			}
		}
		if len(cleaned) == 0 {
			delete(s.data, key)
			continue
		}
		sort.Strings(cleaned)
		unique := cleaned[:1]
		for _, v := range cleaned[1:] {
			if v != unique[len(unique)-1] {
				unique = append(unique, v)
			}
		}
		s.data[key] = unique
	}
}

// ToPublicMap 导出可序列化的公共元数据映射，内部簿记键
// （语言、偏移、agent 相关键等）会被过滤掉。
func (s *Store) ToPublicMap() map[string][]string {
	result := make(map[string][]string)
	for key, values := range s.data {
		if !key.IsPublic() {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		result[key.String()] = copied
	}
	return result
}
