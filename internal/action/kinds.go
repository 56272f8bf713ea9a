package action

import (
	"encoding/json"
	"fmt"
)

// Canonical kind identifiers.
const (
	KindCreateStack     = "AWS::CreateStack"
	KindDeleteStack     = "AWS::DeleteStack"
	KindCreateChangeSet = "AWS::CreateChangeSet"
	KindApplyChangeSet  = "AWS::ApplyChangeSet"
	KindDeleteChangeSet = "AWS::DeleteChangeSet"
	KindPutUser         = "AWS::PutUser"
	KindDeleteUser      = "AWS::DeleteUser"
)

type createStackParams struct {
	StackName        string            `mapstructure:"StackName" validate:"required"`
	TemplateUrl      string            `mapstructure:"TemplateUrl" validate:"required"`
	StackParameters  map[string]any    `mapstructure:"StackParameters"`
	StackPolicy      any               `mapstructure:"StackPolicy"`
	Tags             map[string]string `mapstructure:"Tags"`
	TimeoutInMinutes int               `mapstructure:"TimeoutInMinutes" validate:"omitempty,min=1"`
	OnFailure        string            `mapstructure:"OnFailure" validate:"omitempty,oneof=DO_NOTHING ROLLBACK DELETE"`
}

type stackParams struct {
	StackName string `mapstructure:"StackName" validate:"required"`
}

type createChangeSetParams struct {
	StackName       string            `mapstructure:"StackName" validate:"required"`
	ChangeSetName   string            `mapstructure:"ChangeSetName" validate:"required"`
	TemplateUrl     string            `mapstructure:"TemplateUrl" validate:"required"`
	StackParameters map[string]any    `mapstructure:"StackParameters"`
	Tags            map[string]string `mapstructure:"Tags"`
}

type changeSetParams struct {
	StackName     string `mapstructure:"StackName" validate:"required"`
	ChangeSetName string `mapstructure:"ChangeSetName" validate:"required"`
}

type putUserParams struct {
	UserName string `mapstructure:"UserName" validate:"required"`
}

type deleteUserParams struct {
	UserNames []string `mapstructure:"UserNames" validate:"required,min=1,dive,required"`
}

// Builtins returns the kinds every registry starts with.
func Builtins() []Kind {
	return []Kind{
		&typedKind[createStackParams]{
			name:    KindCreateStack,
			aliases: []string{"create_stack"},
			multi:   true,
			emit: func(p *createStackParams, in Input) map[string]any {
				out := map[string]any{
					"StackName":   p.StackName,
					"TemplateUrl": p.TemplateUrl,
				}
				if len(p.StackParameters) > 0 {
					out["StackParameters"] = p.StackParameters
				}
				if policy := stackPolicyJSON(p.StackPolicy); policy != "" {
					out["StackPolicy"] = policy
				}
				if tags := mergeTags(in.Tags, p.Tags); tags != nil {
					out["Tags"] = tags
				}
				if p.TimeoutInMinutes > 0 {
					out["TimeoutInMinutes"] = p.TimeoutInMinutes
				}
				if p.OnFailure != "" {
					out["OnFailure"] = p.OnFailure
				}
				return out
			},
			describe: func(c *Compiled) string {
				return fmt.Sprintf("create stack %v from %v in %v/%v",
					c.Params["StackName"], c.Params["TemplateUrl"], c.Params["Account"], c.Params["Region"])
			},
		},
		&typedKind[stackParams]{
			name:    KindDeleteStack,
			aliases: []string{"delete_stack"},
			multi:   true,
			emit: func(p *stackParams, _ Input) map[string]any {
				return map[string]any{"StackName": p.StackName}
			},
			describe: func(c *Compiled) string {
				return fmt.Sprintf("delete stack %v in %v/%v", c.Params["StackName"], c.Params["Account"], c.Params["Region"])
			},
		},
		&typedKind[createChangeSetParams]{
			name:    KindCreateChangeSet,
			aliases: []string{"create_change_set"},
			emit: func(p *createChangeSetParams, in Input) map[string]any {
				out := map[string]any{
					"StackName":     p.StackName,
					"ChangeSetName": p.ChangeSetName,
					"TemplateUrl":   p.TemplateUrl,
				}
				if len(p.StackParameters) > 0 {
					out["StackParameters"] = p.StackParameters
				}
				if tags := mergeTags(in.Tags, p.Tags); tags != nil {
					out["Tags"] = tags
				}
				return out
			},
			describe: func(c *Compiled) string {
				return fmt.Sprintf("create change set %v for stack %v", c.Params["ChangeSetName"], c.Params["StackName"])
			},
		},
		&typedKind[changeSetParams]{
			name:    KindApplyChangeSet,
			aliases: []string{"apply_change_set"},
			emit:    changeSetEmit,
			describe: func(c *Compiled) string {
				return fmt.Sprintf("apply change set %v to stack %v", c.Params["ChangeSetName"], c.Params["StackName"])
			},
		},
		&typedKind[changeSetParams]{
			name:    KindDeleteChangeSet,
			aliases: []string{"delete_change_set"},
			emit:    changeSetEmit,
			describe: func(c *Compiled) string {
				return fmt.Sprintf("delete change set %v of stack %v", c.Params["ChangeSetName"], c.Params["StackName"])
			},
		},
		&typedKind[putUserParams]{
			name:    KindPutUser,
			aliases: []string{"create_user"},
			emit: func(p *putUserParams, _ Input) map[string]any {
				return map[string]any{"UserName": p.UserName}
			},
			describe: func(c *Compiled) string {
				return fmt.Sprintf("create user %v in %v", c.Params["UserName"], c.Params["Account"])
			},
		},
		&typedKind[deleteUserParams]{
			name:    KindDeleteUser,
			aliases: []string{"delete_user"},
			multi:   true,
			prepare: foldUserName,
			emit: func(p *deleteUserParams, _ Input) map[string]any {
				return map[string]any{"UserNames": p.UserNames}
			},
			describe: func(c *Compiled) string {
				return fmt.Sprintf("delete users %v in %v", c.Params["UserNames"], c.Params["Account"])
			},
		},
	}
}

func changeSetEmit(p *changeSetParams, _ Input) map[string]any {
	return map[string]any{"StackName": p.StackName, "ChangeSetName": p.ChangeSetName}
}

// foldUserName moves a singular UserName into the UserNames list.
func foldUserName(params map[string]any) {
	name, ok := params["UserName"]
	if !ok {
		return
	}
	delete(params, "UserName")
	var names []any
	switch v := params["UserNames"].(type) {
	case []any:
		names = append(names, v...)
	case []string:
		for _, s := range v {
			names = append(names, s)
		}
	case string:
		names = append(names, v)
	}
	params["UserNames"] = append(names, name)
}

// stackPolicyJSON emits a policy document as JSON. Strings are taken to be documents already.
func stackPolicyJSON(policy any) string {
	switch p := policy.(type) {
	case nil:
		return ""
	case string:
		return p
	}
	b, err := json.Marshal(policy)
	if err != nil {
		return ""
	}
	return string(b)
}

// mergeTags overlays explicit Tags params on the computed scope tags. The compiler already
// merged user tags, so this only matters when a kind is built directly.
func mergeTags(computed, explicit map[string]string) map[string]string {
	if len(computed) == 0 && len(explicit) == 0 {
		return nil
	}
	out := make(map[string]string, len(computed)+len(explicit))
	for k, v := range computed {
		out[k] = v
	}
	for k, v := range explicit {
		out[k] = v
	}
	return out
}
