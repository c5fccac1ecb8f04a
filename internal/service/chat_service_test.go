package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parcelpal/internal/models"
)

func setupChatTest(t *testing.T) (*serviceFixture, uint, uint, *models.Chat) {
	t.Helper()
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "Asha")
	partner := f.registerUser(t, "partner@example.com", "Ravi")
	d := f.createDelivery(t, sender)
	result := f.acceptDelivery(t, partner, d.ID)
	return f, sender, partner, result.Chat
}

func TestChatMembersOnly(t *testing.T) {
	f, sender, _, chat := setupChatTest(t)
	stranger := f.registerUser(t, "stranger@example.com", "")

	if _, err := f.chats.GetByDelivery(sender, chat.DeliveryID); err != nil {
		t.Fatalf("sender should read the chat: %v", err)
	}
	if _, err := f.chats.Get(stranger, chat.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger should be rejected, got %v", err)
	}
	if _, err := f.chats.Send(context.Background(), stranger, chat.ID, "hi"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cannot send, got %v", err)
	}
	if f.chats.IsChatMember(stranger, chat.ID) {
		t.Fatalf("stranger reported as member")
	}
}

func TestChatForPendingDeliveryNotFound(t *testing.T) {
	f := setupServiceTest(t)
	sender := f.registerUser(t, "sender@example.com", "")
	d := f.createDelivery(t, sender)
	if _, err := f.chats.GetByDelivery(sender, d.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected chat not found, got %v", err)
	}
}

func TestSendValidatesContent(t *testing.T) {
	f, sender, partner, chat := setupChatTest(t)
	ctx := context.Background()

	if _, err := f.chats.Send(ctx, sender, chat.ID, "   "); !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("blank message should fail, got %v", err)
	}
	if _, err := f.chats.Send(ctx, sender, chat.ID, strings.Repeat("a", 2001)); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("long message should fail, got %v", err)
	}
	first, err := f.chats.Send(ctx, sender, chat.ID, "  where are you?  ")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if first.Content != "where are you?" {
		t.Fatalf("content should be trimmed, got %q", first.Content)
	}
	if _, err := f.chats.Send(ctx, partner, chat.ID, "5 minutes away"); err != nil {
		t.Fatalf("partner send failed: %v", err)
	}

	all, err := f.chats.ListMessages(partner, chat.ID, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("expected messages oldest first, got %+v", all)
	}
	after, err := f.chats.ListMessages(sender, chat.ID, first.ID, 50)
	if err != nil {
		t.Fatalf("list after failed: %v", err)
	}
	if len(after) != 1 || after[0].Content != "5 minutes away" {
		t.Fatalf("expected only the newer message, got %+v", after)
	}
}

func TestPinAndConfirmNegotiation(t *testing.T) {
	f, sender, partner, chat := setupChatTest(t)
	ctx := context.Background()

	if _, err := f.chats.Confirm(ctx, sender, chat.ID); !errors.Is(err, ErrNoPin) {
		t.Fatalf("confirm without pin should fail, got %v", err)
	}
	if _, err := f.chats.Pin(ctx, partner, chat.ID, models.NewMoneyFromFloat(0)); !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("zero pin should fail, got %v", err)
	}

	pinned, err := f.chats.Pin(ctx, partner, chat.ID, models.NewMoneyFromFloat(150))
	if err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if pinned.AgreedAmount == nil || pinned.AgreedAmount.String() != "150.00" || pinned.Confirmed {
		t.Fatalf("unexpected pinned chat: %+v", pinned)
	}
	if pinned.PinnedBy == nil || *pinned.PinnedBy != partner {
		t.Fatalf("pinned_by should be the partner")
	}

	if _, err := f.chats.Confirm(ctx, partner, chat.ID); !errors.Is(err, ErrPinnerCannotConfirm) {
		t.Fatalf("pinner confirm should fail, got %v", err)
	}

	// counter-offer replaces the unconfirmed pin
	if _, err := f.chats.Pin(ctx, sender, chat.ID, models.NewMoneyFromFloat(120)); err != nil {
		t.Fatalf("counter pin failed: %v", err)
	}
	confirmed, err := f.chats.Confirm(ctx, partner, chat.ID)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ConfirmedBy == nil || *confirmed.ConfirmedBy != partner {
		t.Fatalf("chat should be confirmed by partner: %+v", confirmed)
	}
	if confirmed.AgreedAmount.String() != "120.00" {
		t.Fatalf("expected agreed 120.00, got %s", confirmed.AgreedAmount.String())
	}

	again, err := f.chats.Confirm(ctx, sender, chat.ID)
	if err != nil || !again.Confirmed {
		t.Fatalf("repeat confirm should be a no-op, err=%v", err)
	}
	if _, err := f.chats.Pin(ctx, partner, chat.ID, models.NewMoneyFromFloat(200)); !errors.Is(err, ErrAmountConfirmed) {
		t.Fatalf("pin after confirm should be rejected, got %v", err)
	}

	messages, err := f.chats.ListMessages(sender, chat.ID, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 system messages, got %d", len(messages))
	}
	if messages[0].Content != "Ravi pinned amount: Rs. 150" || !messages[0].IsSystem {
		t.Fatalf("unexpected pin message %q", messages[0].Content)
	}
	if messages[2].Content != "Final agreed amount: Rs. 120" {
		t.Fatalf("unexpected confirm message %q", messages[2].Content)
	}
}

func TestRepinAfterConfirmWhenAllowed(t *testing.T) {
	f, sender, partner, chat := setupChatTest(t)
	ctx := context.Background()
	f.cfg.Chat.AllowRepinAfterConfirm = true

	if _, err := f.chats.Pin(ctx, partner, chat.ID, models.NewMoneyFromFloat(150)); err != nil {
		t.Fatalf("pin failed: %v", err)
	}
	if _, err := f.chats.Confirm(ctx, sender, chat.ID); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	repinned, err := f.chats.Pin(ctx, sender, chat.ID, models.NewMoneyFromFloat(180))
	if err != nil {
		t.Fatalf("repin should be allowed: %v", err)
	}
	if repinned.Confirmed || repinned.ConfirmedBy != nil {
		t.Fatalf("repin should reset confirmation: %+v", repinned)
	}
}
