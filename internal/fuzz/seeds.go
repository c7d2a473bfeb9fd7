package fuzztests

import (
	"testing"
)

const maxFuzzInput = 64 << 10

var hostSeeds = []string{
	"",
	"const Q = gql`query { me { id } }`;\n",
	"export const F = gql`\n  fragment F on User { id }\n`;\n",
	"import { F } from './f';\nconst Q = gql`\n  query Q { me { ...F } }\n  ${F}\n`;\n",
	"const A = gql`fragment A on T { a }`;\nconst B = gql`fragment B on T { ...A } ${A}`;\nconst C = gql`query { t { ...B } } ${B}`;\n",
	"const E = gql`query { s(arg: \"\\u{1F600}\\n\\t\") }`;\n",
	"const H = gql`query { ${'x'} ${ `nested ${1}` } }`;\n",
	"const U = gql`query {",
	"const N = gql`\\`escaped backtick\\``;\n",
	"function f() { return gql`query { a }`.loc; }\n",
}

var literalSeeds = []string{
	"",
	"query { a }",
	"\\n\\t\\\\",
	"\\u0041\\u{1F600}\\x41",
	"\\u{",
	"\\",
	"line\\\nbreak",
	"${a} mid ${b}",
}

func addHostSeeds(f *testing.F) {
	for _, s := range hostSeeds {
		f.Add([]byte(s))
	}
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		input = input[:maxFuzzInput]
	}
	return append([]byte(nil), input...)
}
