package schema

import "github.com/alecthomas/participle/v2/lexer"

// file is the raw parse tree of a schema file.
type file struct {
	Blocks []*block `@@*`
}

type block struct {
	Pos        lexer.Position
	Datasource *configBlock `  "datasource" @@`
	Generator  *configBlock `| "generator" @@`
	Model      *modelBlock  `| "model" @@`
}

type configBlock struct {
	Name       string      `@Ident "{"`
	Properties []*property `@@* "}"`
}

type property struct {
	Name  string `@Ident "="`
	Value *value `@@`
}

type modelBlock struct {
	Pos        lexer.Position
	Name       string            `@Ident "{"`
	Fields     []*fieldDecl      `@@*`
	Attributes []*blockAttribute `@@* "}"`
}

type fieldDecl struct {
	Pos        lexer.Position
	Name       string       `@Ident`
	Type       string       `@Ident`
	List       bool         `@("[" "]")?`
	Optional   bool         `@"?"?`
	Attributes []*attribute `@@*`
}

type attribute struct {
	Pos       lexer.Position
	Namespace string      `"@" (@Ident ".")?`
	Name      string      `@Ident`
	Arguments []*argument `("(" (@@ ("," @@)*)? ")")?`
}

type blockAttribute struct {
	Pos       lexer.Position
	Name      string      `"@@" @Ident`
	Arguments []*argument `("(" (@@ ("," @@)*)? ")")?`
}

type argument struct {
	Name  string `(@Ident ":")?`
	Value *value `@@`
}

type value struct {
	Call   *call   `  @@`
	Array  *array  `| @@`
	String *string `| @String`
	Number *string `| @Number`
	Ident  *string `| @Ident`
}

type call struct {
	Name      string      `@Ident "("`
	Arguments []*argument `(@@ ("," @@)*)? ")"`
}

type array struct {
	Items []*value `"[" (@@ ("," @@)*)? "]"`
}

// positional returns the first unnamed argument.
func positional(args []*argument) *value {
	for _, a := range args {
		if a.Name == "" {
			return a.Value
		}
	}
	return nil
}

// named returns the argument with the given name.
func named(args []*argument, name string) *value {
	for _, a := range args {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// identifiers flattens an identifier or an array of identifiers.
func (v *value) identifiers() []string {
	if v == nil {
		return nil
	}
	if v.Ident != nil {
		return []string{*v.Ident}
	}
	if v.Array == nil {
		return nil
	}
	out := make([]string, 0, len(v.Array.Items))
	for _, item := range v.Array.Items {
		if item.Ident != nil {
			out = append(out, *item.Ident)
		}
	}
	return out
}
