package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/sysu-ecnc-dev/dragon-boat-lineup/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates
var templates embed.FS

// mailMessage 与 domain.MailMessage 对应，Data 按类型延迟解析
type mailMessage struct {
	Type string          `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

func buildMessage(from string, body []byte) (*mail.Msg, error) {
	var mm mailMessage
	if err := json.Unmarshal(body, &mm); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(mm.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	switch mm.Type {
	case domain.MailTypeRacePlansReady:
		var data domain.RacePlansReadyMailData
		if err := json.Unmarshal(mm.Data, &data); err != nil {
			return nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
		}

		tmpl, err := template.ParseFS(templates, "templates/race_plans_ready_email.html")
		if err != nil {
			return nil, fmt.Errorf("无法解析邮件模板: %w", err)
		}
		if err := m.SetBodyHTMLTemplate(tmpl, data); err != nil {
			return nil, fmt.Errorf("无法设置邮件正文: %w", err)
		}
		if len(data.Attachment) > 0 {
			if err := m.AttachReader(data.AttachmentName, bytes.NewReader(data.Attachment)); err != nil {
				return nil, fmt.Errorf("无法添加附件: %w", err)
			}
		}
		m.Subject(fmt.Sprintf("龙舟排阵 - %s 比赛方案已生成", data.SessionName))
	default:
		return nil, fmt.Errorf("不支持的邮件类型 %q", mm.Type)
	}

	return m, nil
}
