package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Синтаксис встроенного документа
	SynInfo            Code = 2000
	SynUnexpectedToken Code = 2001

	// Проверки по схеме
	SemaInfo        Code = 3000
	SemaConformance Code = 3001

	// Композиция документов
	CmpInfo                    Code = 4000
	CmpDuplicateFragment       Code = 4001
	CmpUnresolvedInterpolation Code = 4002
	CmpTooComplexExpression    Code = 4003
	CmpCycle                   Code = 4004

	// Схема
	SchInfo        Code = 5000
	SchAcquisition Code = 5001

	IOInfo          Code = 6000
	IOLoadFileError  Code = 6001
	IOWriteFileError Code = 6002

	// Генерация типов
	GenInfo   Code = 7000
	GenFailed Code = 7001
)

var (
	codeDescription = map[Code]string{
		UnknownCode:                "Unknown error",
		SynInfo:                    "Syntax information",
		SynUnexpectedToken:         "Syntax error",
		SemaInfo:                   "Schema validation information",
		SemaConformance:            "Document does not conform to the schema",
		CmpInfo:                    "Composition information",
		CmpDuplicateFragment:       "Duplicate fragment name",
		CmpUnresolvedInterpolation: "Unresolved interpolation",
		CmpTooComplexExpression:    "Dynamic expression too complex to analyze",
		CmpCycle:                   "Fragment composition cycle",
		SchInfo:                    "Schema information",
		SchAcquisition:             "Schema acquisition failed",
		IOInfo:                     "I/O information",
		IOLoadFileError:            "I/O load file error",
		IOWriteFileError:           "I/O write file error",
		GenInfo:                    "Type generation information",
		GenFailed:                  "Type generation failed",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("SYN%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("SEM%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("CMP%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("SCH%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 7000 && ic < 8000:
		return fmt.Sprintf("GEN%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
