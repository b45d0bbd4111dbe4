package permissions

const (
	ExpenseCreate        = "expense.create"
	ExpenseReadOwn       = "expense.read.own"
	ExpenseReadCompany   = "expense.read.company"
	ExpenseUpdateOwn     = "expense.update.own"
	ExpenseDeleteOwn     = "expense.delete.own"
	ExpenseDeleteCompany = "expense.delete.company"
	ExpenseReview        = "expense.review"

	CompanyCreate   = "company.create"
	CompanyView     = "company.view"
	CompanyRename   = "company.rename"
	CompanyDelete   = "company.delete"
	CompanyLeave    = "company.leave"
	CompanyTransfer = "company.transfer"

	MemberInvite         = "member.invite"
	MemberInviteElevated = "member.invite.elevated"
	MemberRemove         = "member.remove"
	MemberRemoveElevated = "member.remove.elevated"
	MemberRole           = "member.role"
	MemberRoleElevated   = "member.role.elevated"
	InvitationManage     = "invitation.manage"
)

func init() {
	perms := []*Permission{
		{ID: ExpenseCreate, Module: "expenses", Description: "Submit expenses"},
		{ID: ExpenseReadOwn, Module: "expenses", Description: "View own expenses"},
		{ID: ExpenseReadCompany, Module: "expenses", DependsOn: []string{ExpenseReadOwn}, Description: "View every expense of the company"},
		{ID: ExpenseUpdateOwn, Module: "expenses", DependsOn: []string{ExpenseReadOwn}, Description: "Edit own expenses before review"},
		{ID: ExpenseDeleteOwn, Module: "expenses", DependsOn: []string{ExpenseReadOwn}, Description: "Delete own expenses"},
		{ID: ExpenseDeleteCompany, Module: "expenses", DependsOn: []string{ExpenseReadCompany, ExpenseDeleteOwn}, Description: "Delete any company expense"},
		{ID: ExpenseReview, Module: "expenses", DependsOn: []string{ExpenseReadCompany}, Description: "Approve or reject pending company expenses"},

		{ID: CompanyCreate, Module: "companies", Description: "Create a company workspace"},
		{ID: CompanyView, Module: "companies", Description: "View the company and its members"},
		{ID: CompanyRename, Module: "companies", DependsOn: []string{CompanyView}, Description: "Rename the company"},
		{ID: CompanyDelete, Module: "companies", DependsOn: []string{CompanyView}, Description: "Delete the company"},
		{ID: CompanyLeave, Module: "companies", DependsOn: []string{CompanyView}, Description: "Leave the company"},
		{ID: CompanyTransfer, Module: "companies", DependsOn: []string{MemberRoleElevated}, Description: "Transfer ownership to another member"},

		{ID: InvitationManage, Module: "members", DependsOn: []string{CompanyView}, Description: "View invitations sent by the company"},
		{ID: MemberInvite, Module: "members", DependsOn: []string{InvitationManage}, Description: "Invite auditors and users"},
		{ID: MemberInviteElevated, Module: "members", DependsOn: []string{MemberInvite}, Description: "Invite admins"},
		{ID: MemberRemove, Module: "members", DependsOn: []string{CompanyView}, Description: "Remove auditors and users"},
		{ID: MemberRemoveElevated, Module: "members", DependsOn: []string{MemberRemove}, Description: "Remove admins"},
		{ID: MemberRole, Module: "members", DependsOn: []string{CompanyView}, Description: "Change roles between auditor and user"},
		{ID: MemberRoleElevated, Module: "members", DependsOn: []string{MemberRole}, Description: "Grant or revoke the admin role"},
	}

	for _, perm := range perms {
		if err := Register(perm); err != nil {
			panic(err)
		}
	}
	if err := ValidateDependencies(); err != nil {
		panic(err)
	}
}
