// Package catalog 计算模型参数目录（树形结构：模型 → 分区 → 对象 → 参数）
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"twin-data/internal/domain"
)

// Tree 模型参数树
type Tree struct {
	ModelID    string `yaml:"model_id" json:"modelId"`
	ObjectName string `yaml:"object_name" json:"objectName"`
	Sections   []Node `yaml:"sections" json:"sections"`
}

// Node 分区或对象；叶子参数在 Parameters 中
type Node struct {
	ID         string  `yaml:"id" json:"id,omitempty"`
	Type       string  `yaml:"type" json:"type,omitempty"`
	Name       string  `yaml:"name" json:"name"`
	Children   []Node  `yaml:"children" json:"children,omitempty"`
	Parameters []Param `yaml:"parameters" json:"parameters,omitempty"`
}

// Param 叶子参数；Type 为显式类型标签，可能不是传感器类型（如 power）
type Param struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Unit string `yaml:"unit" json:"unit"`
	Type string `yaml:"type" json:"type"`
}

// Catalog 扁平化后的参数目录，按 ID 索引
type Catalog struct {
	tree   *Tree
	params []domain.Parameter
	byID   map[string]int
}

// New 由参数树构建目录；参数 ID 必须唯一
func New(tree *Tree) (*Catalog, error) {
	c := &Catalog{tree: tree, byID: make(map[string]int)}
	for _, p := range flatten(tree) {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog parameter %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog parameter id %q", p.ID)
		}
		c.byID[p.ID] = len(c.params)
		c.params = append(c.params, p)
	}
	return c, nil
}

// LoadFile 从 YAML 文件加载参数树
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	var tree Tree
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return New(&tree)
}

// Tree 原始树（供前端渲染）
func (c *Catalog) Tree() *Tree { return c.tree }

// Parameters 全部参数（深度优先顺序）
func (c *Catalog) Parameters() []domain.Parameter {
	return append([]domain.Parameter(nil), c.params...)
}

// Find 按 ID 查找参数
func (c *Catalog) Find(id string) (domain.Parameter, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Parameter{}, false
	}
	return c.params[i], true
}

// Search 名称（含路径）不区分大小写的子串匹配；空查询返回全部
func (c *Catalog) Search(query string) []domain.Parameter {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Parameters()
	}
	var out []domain.Parameter
	for _, p := range c.params {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.ID), q) {
			out = append(out, p)
		}
	}
	return out
}

// flatten 参数显示名为 "模型对象 > 分区 > 对象 - 参数"
func flatten(tree *Tree) []domain.Parameter {
	var out []domain.Parameter
	var walk func(n Node, path string)
	walk = func(n Node, path string) {
		current := path + " > " + n.Name
		for _, child := range n.Children {
			walk(child, current)
		}
		for _, p := range n.Parameters {
			out = append(out, domain.Parameter{
				ID:   p.ID,
				Name: current + " - " + p.Name,
				Unit: p.Unit,
				Type: domain.SensorType(p.Type),
			})
		}
	}
	for _, s := range tree.Sections {
		walk(s, tree.ObjectName)
	}
	return out
}
