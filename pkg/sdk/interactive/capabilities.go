package interactive

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/betbot/xtsgo/pkg/logger"
)

// 聚合表的名称，可用于 Has/Values
const (
	CategoryOrderTypes   = "orderTypes"
	CategoryProductTypes = "productTypes"
	CategoryTimeInForce  = "timeInForce"
)

// Set 自映射集合（value -> value）
type Set map[string]string

func (s Set) add(v string) { s[v] = v }

// Capabilities 登录枚举展开后的能力表
type Capabilities struct {
	// Tables 每个枚举类别一张表；嵌套类别的表里是它的子键（如交易所分段）
	Tables       map[string]Set
	OrderTypes   Set
	ProductTypes Set
	TimeInForce  Set
}

// segmentDescriptor 嵌套类别里每个子键的描述
type segmentDescriptor struct {
	OrderType   []json.RawMessage `json:"orderType"`
	ProductType []json.RawMessage `json:"productType"`
	TimeInForce []json.RawMessage `json:"timeInForce"`
}

// BuildCapabilities 展开登录返回的枚举。
// 平铺的数组生成自映射集合；嵌套的对象生成子键集合，并把各子键的
// orderType/productType/timeInForce 并入三张聚合表。相同输入总是得到相同结果。
func BuildCapabilities(enums map[string]json.RawMessage) *Capabilities {
	caps := &Capabilities{
		Tables:       make(map[string]Set, len(enums)),
		OrderTypes:   Set{},
		ProductTypes: Set{},
		TimeInForce:  Set{},
	}

	for category, raw := range enums {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		switch raw[0] {
		case '[':
			var values []json.RawMessage
			if err := json.Unmarshal(raw, &values); err != nil {
				logger.Warnf("枚举 %s 解析失败，已跳过: %v", category, err)
				continue
			}
			set := Set{}
			for _, v := range values {
				if s, ok := scalarValue(v); ok {
					set.add(s)
				}
			}
			caps.Tables[category] = set

		case '{':
			var segments map[string]json.RawMessage
			if err := json.Unmarshal(raw, &segments); err != nil {
				logger.Warnf("枚举 %s 解析失败，已跳过: %v", category, err)
				continue
			}
			set := Set{}
			for key, segRaw := range segments {
				set.add(key)
				var desc segmentDescriptor
				if err := json.Unmarshal(segRaw, &desc); err != nil {
					// 子键没有描述对象时只记录子键本身
					continue
				}
				addAll(caps.OrderTypes, desc.OrderType)
				addAll(caps.ProductTypes, desc.ProductType)
				addAll(caps.TimeInForce, desc.TimeInForce)
			}
			caps.Tables[category] = set

		default:
			logger.Warnf("枚举 %s 格式不支持，已跳过", category)
		}
	}
	return caps
}

func addAll(dst Set, values []json.RawMessage) {
	for _, v := range values {
		if s, ok := scalarValue(v); ok {
			dst.add(s)
		}
	}
}

// scalarValue 字符串原样返回，数字按十进制文本返回
func scalarValue(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// Clone 深拷贝
func (c *Capabilities) Clone() *Capabilities {
	if c == nil {
		return nil
	}
	out := &Capabilities{
		Tables:       make(map[string]Set, len(c.Tables)),
		OrderTypes:   c.OrderTypes.clone(),
		ProductTypes: c.ProductTypes.clone(),
		TimeInForce:  c.TimeInForce.clone(),
	}
	for k, v := range c.Tables {
		out.Tables[k] = v.clone()
	}
	return out
}

func (s Set) clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (c *Capabilities) table(category string) Set {
	if c == nil {
		return nil
	}
	switch category {
	case CategoryOrderTypes:
		return c.OrderTypes
	case CategoryProductTypes:
		return c.ProductTypes
	case CategoryTimeInForce:
		return c.TimeInForce
	}
	return c.Tables[category]
}

// Has 判断 value 是否属于 category（也接受三张聚合表的名称）
func (c *Capabilities) Has(category, value string) bool {
	_, ok := c.table(category)[value]
	return ok
}

// Values 返回 category 的全部取值（已排序）
func (c *Capabilities) Values(category string) []string {
	t := c.table(category)
	out := make([]string, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Categories 返回全部枚举类别名（已排序）
func (c *Capabilities) Categories() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.Tables))
	for k := range c.Tables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
