package wasm

import "fmt"

// Validate checks the module for structural validity.
func (m *Module) Validate() error {
	if err := m.validateTypeIndices(); err != nil {
		return err
	}
	if err := m.validateFunctionIndices(); err != nil {
		return err
	}
	if err := m.validateTableIndices(); err != nil {
		return err
	}
	if err := m.validateMemoryIndices(); err != nil {
		return err
	}
	if err := m.validateGlobalIndices(); err != nil {
		return err
	}
	if err := m.validateExports(); err != nil {
		return err
	}
	if err := m.validateStart(); err != nil {
		return err
	}
	if err := m.validateDataCount(); err != nil {
		return err
	}
	if err := m.validateMemoryLimits(); err != nil {
		return err
	}
	return m.validateCode()
}

// ParseModuleValidate parses a WebAssembly binary and validates it.
// This is a convenience function combining ParseModule and Validate.
func ParseModuleValidate(data []byte) (*Module, error) {
	m, err := ParseModule(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Module) validateTypeIndices() error {
	numTypes := uint32(len(m.Types))
	if numTypes == 0 {
		if len(m.Funcs) > 0 {
			return fmt.Errorf("function references type but no types defined")
		}
		return nil
	}

	for i, typeIdx := range m.Funcs {
		if typeIdx >= numTypes {
			return fmt.Errorf("function %d references invalid type index %d (max %d)", i, typeIdx, numTypes-1)
		}
	}

	for i, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc && imp.Desc.TypeIdx >= numTypes {
			return fmt.Errorf("import %d (%s.%s) references invalid type index %d", i, imp.Module, imp.Name, imp.Desc.TypeIdx)
		}
	}

	return nil
}

func (m *Module) validateFunctionIndices() error {
	numFuncs := uint32(m.NumFuncs())
	for i, elem := range m.Elements {
		for _, funcIdx := range elem.FuncIdxs {
			if funcIdx >= numFuncs {
				return fmt.Errorf("element %d references invalid function index %d", i, funcIdx)
			}
		}
	}
	return nil
}

func (m *Module) validateTableIndices() error {
	numTables := uint32(len(m.Tables))
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindTable {
			numTables++
		}
	}
	for i, elem := range m.Elements {
		if elem.IsActive() && elem.TableIdx >= numTables {
			return fmt.Errorf("element %d references invalid table index %d", i, elem.TableIdx)
		}
	}
	return nil
}

func (m *Module) validateMemoryIndices() error {
	numMemories := len(m.Memories)
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindMemory {
			numMemories++
		}
	}
	if numMemories > 1 {
		return fmt.Errorf("at most one memory is allowed, found %d", numMemories)
	}
	for i, seg := range m.Data {
		if seg.IsActive() && int(seg.MemIdx) >= numMemories {
			return fmt.Errorf("data segment %d references invalid memory index %d", i, seg.MemIdx)
		}
	}
	return nil
}

func (m *Module) validateGlobalIndices() error {
	// Global init expressions may only reference imported globals
	numImported := uint32(m.NumImportedGlobals())
	for i, g := range m.Globals {
		if len(g.Init) >= 2 && g.Init[0] == OpGlobalGet {
			instrs, err := DecodeInstructions(g.Init)
			if err != nil {
				return fmt.Errorf("global %d init: %w", i, err)
			}
			if imm, ok := instrs[0].Imm.(GlobalImm); ok && imm.GlobalIdx >= numImported {
				return fmt.Errorf("global %d init references non-imported global %d", i, imm.GlobalIdx)
			}
		}
	}
	return nil
}

func (m *Module) validateExports() error {
	numFuncs := uint32(m.NumFuncs())
	numTables := uint32(len(m.Tables))
	numMemories := uint32(len(m.Memories))
	numGlobals := uint32(m.NumImportedGlobals() + len(m.Globals))
	for _, imp := range m.Imports {
		switch imp.Desc.Kind {
		case KindTable:
			numTables++
		case KindMemory:
			numMemories++
		}
	}

	for _, exp := range m.Exports {
		var limit uint32
		switch exp.Kind {
		case KindFunc:
			limit = numFuncs
		case KindTable:
			limit = numTables
		case KindMemory:
			limit = numMemories
		case KindGlobal:
			limit = numGlobals
		default:
			return fmt.Errorf("export %q has unknown kind %d", exp.Name, exp.Kind)
		}
		if exp.Idx >= limit {
			return fmt.Errorf("export %q references invalid index %d", exp.Name, exp.Idx)
		}
	}
	return nil
}

func (m *Module) validateStart() error {
	if m.Start == nil {
		return nil
	}
	if int(*m.Start) >= m.NumFuncs() {
		return fmt.Errorf("start references invalid function index %d", *m.Start)
	}
	ft := m.GetFuncType(*m.Start)
	if ft == nil || len(ft.Params) != 0 || len(ft.Results) != 0 {
		return fmt.Errorf("start function %d must have type [] -> []", *m.Start)
	}
	return nil
}

func (m *Module) validateDataCount() error {
	if m.DataCount != nil && int(*m.DataCount) != len(m.Data) {
		return fmt.Errorf("data count %d does not match %d data segments", *m.DataCount, len(m.Data))
	}
	return nil
}

func (m *Module) validateMemoryLimits() error {
	const maxPages = 65536 // 4GiB
	for i, mem := range m.Memories {
		if mem.Limits.Min > maxPages {
			return fmt.Errorf("memory %d minimum %d exceeds %d pages", i, mem.Limits.Min, maxPages)
		}
		if mem.Limits.Max != nil {
			if *mem.Limits.Max > maxPages {
				return fmt.Errorf("memory %d maximum %d exceeds %d pages", i, *mem.Limits.Max, maxPages)
			}
			if *mem.Limits.Max < mem.Limits.Min {
				return fmt.Errorf("memory %d maximum %d below minimum %d", i, *mem.Limits.Max, mem.Limits.Min)
			}
		}
	}
	return nil
}

// validateCode decodes every function body once so malformed or unsupported
// instruction streams are rejected at load time rather than mid-execution.
func (m *Module) validateCode() error {
	numFuncs := uint32(m.NumFuncs())
	numTypes := uint32(len(m.Types))
	numTables := uint32(len(m.Tables))
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindTable {
			numTables++
		}
	}
	for i, fb := range m.Code {
		instrs, err := DecodeInstructions(fb.Code)
		if err != nil {
			return fmt.Errorf("function body %d: %w", i, err)
		}
		depth := 0
		for pc, instr := range instrs {
			switch instr.Opcode {
			case OpBlock, OpLoop, OpIf:
				if imm := instr.Imm.(BlockImm); imm.Type >= 0 {
					return fmt.Errorf("function body %d: multi-value block types are not supported", i)
				}
				depth++
			case OpEnd:
				depth--
			case OpCall:
				if imm := instr.Imm.(CallImm); imm.FuncIdx >= numFuncs {
					return fmt.Errorf("function body %d pc %d: call to invalid function index %d", i, pc, imm.FuncIdx)
				}
			case OpCallIndirect:
				imm := instr.Imm.(CallIndirectImm)
				if imm.TypeIdx >= numTypes {
					return fmt.Errorf("function body %d pc %d: call_indirect with invalid type index %d", i, pc, imm.TypeIdx)
				}
				if imm.TableIdx >= numTables {
					return fmt.Errorf("function body %d pc %d: call_indirect with invalid table index %d", i, pc, imm.TableIdx)
				}
			case OpPrefixMisc:
				imm := instr.Imm.(MiscImm)
				switch imm.SubOpcode {
				case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
					MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U,
					MiscMemoryCopy, MiscMemoryFill:
				default:
					return fmt.Errorf("function body %d pc %d: unsupported misc opcode 0x%02x", i, pc, imm.SubOpcode)
				}
			}
		}
		if depth != -1 {
			// The implicit function block consumes the final end
			return fmt.Errorf("function body %d: unbalanced block nesting", i)
		}
	}
	return nil
}
