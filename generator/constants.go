package generator

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ardanlabs/cextract/ir"
)

// writeConstant adds an enum constant or a macro to the const block.
// Numbers are typed like their C declaration; strings stay untyped.
func (e *emission) writeConstant(c *ir.Constant) {
	name, ok := ir.TargetSimpleName(c)
	if !ok {
		return
	}

	var value string
	typed := true
	switch v := c.Value.(type) {
	case int64:
		value = strconv.FormatInt(v, 10)
	case uint64:
		value = strconv.FormatUint(v, 10)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			e.log.Info("no Go constant for non-finite value", zap.String("name", c.Name()))
			return
		}
		value = strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		value = strconv.Quote(v)
		typed = false
	default:
		return
	}

	var goType string
	if l, err := e.abi.LayoutOf(c.Type); typed && err == nil {
		if v, ok := l.(*ir.ValueLayout); ok {
			switch v.Carrier {
			case ir.CarrierInt, ir.CarrierFloat:
				goType = e.goType(c.Type)
			case ir.CarrierUint:
				if !strings.HasPrefix(value, "-") {
					goType = e.goType(c.Type)
				}
			}
		}
	}

	enum, isEnum := ir.EnumConstantOf(c)
	switch {
	case isEnum && enum != e.lastEnum:
		if e.constants.Len() > 0 {
			e.constants.WriteString("\n")
		}
		e.constants.WriteString("\t// enum " + enum + "\n")
	case !isEnum && e.lastEnum != "":
		e.constants.WriteString("\n")
	}
	e.lastEnum = enum

	goName := e.globals.name(toGoName(name))
	if goType == "" {
		e.constants.WriteString("\t" + goName + " = " + value + "\n")
		return
	}
	e.constants.WriteString("\t" + goName + " " + goType + " = " + value + "\n")
}
