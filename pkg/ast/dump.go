package ast

import (
	"strconv"
	"strings"
)

// Dump renders prog as S-expressions, one top-level statement per line.
func Dump(prog *Program) string {
	var sb strings.Builder
	for _, s := range prog.Stmts {
		dumpStmt(&sb, s)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func DumpStmt(s *Stmt) string {
	var sb strings.Builder
	dumpStmt(&sb, s)
	return sb.String()
}

func DumpExpr(e *Expr) string {
	var sb strings.Builder
	dumpExpr(&sb, e)
	return sb.String()
}

func dumpStmt(sb *strings.Builder, s *Stmt) {
	switch d := s.Data.(type) {
	case LetNode:
		sb.WriteString("(let " + d.Name + " ")
		dumpExpr(sb, d.Value)
	case AssignNode:
		sb.WriteString("(set " + d.Name + " ")
		dumpExpr(sb, d.Value)
	case ExitNode:
		sb.WriteString("(exit ")
		dumpExpr(sb, d.Value)
	case ScopeNode:
		sb.WriteString("(scope")
		for _, inner := range d.Stmts {
			sb.WriteByte(' ')
			dumpStmt(sb, inner)
		}
	case IfNode:
		sb.WriteString("(if ")
		dumpExpr(sb, d.Cond)
		sb.WriteByte(' ')
		dumpStmt(sb, d.Then)
		for _, elif := range d.Elifs {
			sb.WriteString(" (elif ")
			dumpExpr(sb, elif.Cond)
			sb.WriteByte(' ')
			dumpStmt(sb, elif.Body)
			sb.WriteByte(')')
		}
		if d.Else != nil {
			sb.WriteString(" (else ")
			dumpStmt(sb, d.Else)
			sb.WriteByte(')')
		}
	case WhileNode:
		sb.WriteString("(while ")
		dumpExpr(sb, d.Cond)
		sb.WriteByte(' ')
		dumpStmt(sb, d.Body)
	case ArrayDeclNode:
		sb.WriteString("(array " + d.Name + " ")
		dumpExpr(sb, d.Size)
	case ArrayAssignNode:
		sb.WriteString("(set-index " + d.Name + " ")
		dumpExpr(sb, d.Index)
		sb.WriteByte(' ')
		dumpExpr(sb, d.Value)
	case ArrayReadNode:
		sb.WriteString("(index " + d.Name + " ")
		dumpExpr(sb, d.Index)
	case BuiltinCallNode:
		sb.WriteString("(call " + d.Name)
		for _, arg := range d.Args {
			sb.WriteByte(' ')
			dumpExpr(sb, arg)
		}
	default:
		sb.WriteString("(?")
	}
	sb.WriteByte(')')
}

func dumpExpr(sb *strings.Builder, e *Expr) {
	switch d := e.Data.(type) {
	case IntLitNode:
		sb.WriteString(strconv.FormatInt(d.Value, 10))
	case IdentNode:
		sb.WriteString(d.Name)
	case StrLitNode:
		sb.WriteString(strconv.Quote(d.Value))
	case BinaryNode:
		sb.WriteString("(" + d.Op.String() + " ")
		dumpExpr(sb, d.Left)
		sb.WriteByte(' ')
		dumpExpr(sb, d.Right)
		sb.WriteByte(')')
	case ParenNode:
		sb.WriteString("(paren ")
		dumpExpr(sb, d.Inner)
		sb.WriteByte(')')
	case ArrayReadNode:
		sb.WriteString("(index " + d.Name + " ")
		dumpExpr(sb, d.Index)
		sb.WriteByte(')')
	default:
		sb.WriteString("?")
	}
}
