package spec

import "github.com/sarchlab/armspecgen/ast"

// featureOverrides replaces the support expressions of features whose
// constraints are wrong, incomplete or too complex to use.
var featureOverrides = map[string]ast.Node{
	"FEAT_AA32":    uintTest("EL0", "ID_AA64PFR0_EL1", "==", 2),
	"FEAT_AA32EL0": uintTest("EL0", "ID_AA64PFR0_EL1", "==", 2),
	"FEAT_AA64EL2": uintTest("EL2", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_AA64EL3": uintTest("EL2", "ID_AA64PFR0_EL1", ">=", 1),

	"FEAT_AA32EL1": uintTest("EL1", "ID_AA64PFR0_EL1", "==", 2),
	"FEAT_AA32EL2": uintTest("EL2", "ID_AA64PFR0_EL1", "==", 2),
	"FEAT_AA32EL3": uintTest("EL3", "ID_AA64PFR0_EL1", "==", 2),
	"FEAT_AA64EL0": uintTest("EL0", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_AA64EL1": uintTest("EL1", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_AA64": ast.NewBinaryOp(
		ast.NewBinaryOp(ident("FEAT_AA64EL0"), "||", ident("FEAT_AA64EL1")),
		"||",
		ast.NewBinaryOp(ident("FEAT_AA64EL2"), "||", ident("FEAT_AA64EL3"))),

	"FEAT_S2FWB": uintTest("FWB", "ID_AA64MMFR2_EL1", ">=", 1),
	"FEAT_UAO":   uintTest("UAO", "ID_AA64MMFR2_EL1", ">=", 1),

	"FEAT_PMUv3_TH2": uintTest("EDGE", "PMMIR_EL1", ">=", 2),
	"FEAT_PACIMP": ast.AndListToTree([]ast.Node{
		uintTest("GPI", "ID_AA64ISAR1_EL1", ">=", 1),
		uintTest("API", "ID_AA64ISAR1_EL1", ">=", 1),
	}),
	"FEAT_PACQARMA5": ast.AndListToTree([]ast.Node{
		uintTest("GPA", "ID_AA64ISAR1_EL1", ">=", 1),
		uintTest("APA", "ID_AA64ISAR1_EL1", ">=", 1),
	}),
	"FEAT_PACQARMA3": ast.AndListToTree([]ast.Node{
		uintTest("GPA3", "ID_AA64ISAR2_EL1", ">=", 1),
		uintTest("APA3", "ID_AA64ISAR2_EL1", ">=", 1),
	}),

	"FEAT_F8F16MM":      ast.NewField("F8MM4", "ID_AA64FPFR0_EL1"),
	"FEAT_F8F32MM":      ast.NewField("F8MM8", "ID_AA64FPFR0_EL1"),
	"FEAT_SVE_F16F32MM": uintTest("F16MM", "ID_AA64ZFR0_EL1", ">=", 1),
	"FEAT_PAuth": ast.OrListToTree([]ast.Node{
		uintTest("API", "ID_AA64ISAR1_EL1", ">=", 1),
		uintTest("APA", "ID_AA64ISAR1_EL1", ">=", 1),
		uintTest("APA3", "ID_AA64ISAR2_EL1", ">=", 1),
	}),

	// TODO: GIC detection only looks at ID_AA64PFR0_EL1.GIC; the minor
	// versions need the GIC distributor registers.
	"FEAT_GICv3":      uintTest("GIC", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_GICv3p1":    uintTest("GIC", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_GICv4":      uintTest("GIC", "ID_AA64PFR0_EL1", ">=", 1),
	"FEAT_GICv4p1":    uintTest("GIC", "ID_AA64PFR0_EL1", ">=", 3),
	"FEAT_GICv3_NMI":  ast.NewBinaryOp(ident("FEAT_GICv3"), "&&", ident("FEAT_NMI")),
	"FEAT_GICv3_TDIR": ast.NewBinaryOp(ident("FEAT_GICv3"), "&&", ast.NewField("TDS", "ICH_VTR_EL2")),

	"FEAT_SSVE_FEXPA": ast.NewField("SFEXPA", "ID_AA64SMFR0_EL1"),

	"FEAT_CHK":     ident("FEAT_GCS"),
	"FEAT_ETE":     uintTest("TraceVer", "ID_AA64DFR0_EL1", ">=", 1),
	"FEAT_ETEv1p1": ast.NewBinaryOp(ident("FEAT_ETE"), "&&", uintTest("REVISION", "TRCDEVARCH", ">=", 1)),
	"FEAT_ETEv1p2": ast.NewBinaryOp(ident("FEAT_ETE"), "&&", uintTest("REVISION", "TRCDEVARCH", ">=", 2)),
	"FEAT_ETEv1p3": ast.NewBinaryOp(ident("FEAT_ETE"), "&&", uintTest("REVISION", "TRCDEVARCH", ">=", 3)),

	"FEAT_ETMv4": ast.AndListToTree([]ast.Node{
		ident("FEAT_ETE"),
		uintTest("PRESENT", "TRCDEVARCH", "==", 1),
		uintTest("ARCHITECT", "TRCDEVARCH", "==", 0x23b),
		uintTest("ARCHVER", "TRCDEVARCH", "==", 4),
		uintTest("ARCHPART", "TRCDEVARCH", "==", 0xa13),
	}),
	"FEAT_ETMv4p1": etmRevision(1),
	"FEAT_ETMv4p2": etmRevision(2),
	"FEAT_ETMv4p3": etmRevision(3),
	"FEAT_ETMv4p4": etmRevision(4),
	"FEAT_ETMv4p5": etmRevision(5),
	"FEAT_ETMv4p6": etmRevision(6),
	"FEAT_VPIPT":   uintTest("L1Ip", "CTR_EL0", "==", 2),

	"FEAT_LPA2": ast.OrListToTree([]ast.Node{
		uintTest("TGran4", "ID_AA64MMFR0_EL1", ">=", 1),
		uintTest("TGran16", "ID_AA64MMFR0_EL1", ">=", 2),
		uintTest("TGran4_2", "ID_AA64MMFR0_EL1", ">=", 3),
		uintTest("TGran16_2", "ID_AA64MMFR0_EL1", ">=", 3),
	}),
	"FEAT_SME2p2": ast.AndListToTree([]ast.Node{ident("FEAT_SME"), ident("FEAT_SVE2p2")}),
}

func ident(name string) ast.Node {
	return &ast.Identifier{Name: name}
}

// uintTest builds `UInt(AArch64.register.field) op value`.
func uintTest(field, register, op string, value int64) ast.Node {
	return ast.NewBinaryOp(
		&ast.Function{Name: "UInt", Args: []ast.Node{ast.NewField(field, register)}},
		op,
		&ast.Integer{Value: value})
}

func etmRevision(rev int64) ast.Node {
	return ast.AndListToTree([]ast.Node{ident("FEAT_ETMv4"), uintTest("REVISION", "TRCDEVARCH", ">=", rev)})
}
