// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"strconv"
	"strings"

	"github.com/xplshn/glc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	List NodeType = iota
	Number
	Symbol
)

func (t NodeType) String() string {
	switch t {
	case List:
		return "list"
	case Number:
		return "number"
	case Symbol:
		return "symbol"
	}
	return "node(" + strconv.Itoa(int(t)) + ")"
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// --- Node Data Structs ---
type ListNode struct{ Items []*Node }
type NumberNode struct{ Value int64 }
type SymbolNode struct{ Name string }

func NewList(tok token.Token, items []*Node) *Node {
	return &Node{Type: List, Tok: tok, Data: ListNode{Items: items}}
}
func NewNumber(tok token.Token, value int64) *Node {
	return &Node{Type: Number, Tok: tok, Data: NumberNode{Value: value}}
}
func NewSymbol(tok token.Token, name string) *Node {
	return &Node{Type: Symbol, Tok: tok, Data: SymbolNode{Name: name}}
}

// Items returns the children of a list node, or nil for atoms.
func (n *Node) Items() []*Node {
	if d, ok := n.Data.(ListNode); ok {
		return d.Items
	}
	return nil
}

// SymbolName returns the name of a symbol node.
func (n *Node) SymbolName() (string, bool) {
	if d, ok := n.Data.(SymbolNode); ok {
		return d.Name, true
	}
	return "", false
}

// Head returns the symbol at the head of a list node, if there is one.
func (n *Node) Head() (string, bool) {
	items := n.Items()
	if len(items) == 0 {
		return "", false
	}
	return items[0].SymbolName()
}

// String renders the node as canonical source: children separated by single spaces.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch d := n.Data.(type) {
	case ListNode:
		sb.WriteByte('(')
		for i, item := range d.Items {
			if i > 0 {
				sb.WriteByte(' ')
			}
			item.write(sb)
		}
		sb.WriteByte(')')
	case NumberNode:
		sb.WriteString(strconv.FormatInt(d.Value, 10))
	case SymbolNode:
		sb.WriteString(d.Name)
	}
}
